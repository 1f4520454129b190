package assistant

import "fmt"

// NotFoundAnswer is the sentence the Q&A mode must emit verbatim when the
// corpus has no answer.
const NotFoundAnswer = "I could not find an answer to that question in the provided policy documents."

// EmptyResponse is returned in place of an empty generation.
const EmptyResponse = "The AI returned an empty or invalid response. Please check the console for details."

func draftInstruction(corpusURL string) string {
	return "You are an expert AI Policy writer for technology companies. Your task is to draft clear, comprehensive, and actionable policies for organizations using AI. \n\n" +
		"Ground your writing in established frameworks and principles for responsible AI, such as fairness, accountability, transparency, and security. You should reference concepts from frameworks like the NIST AI Risk Management Framework, the OECD AI Principles, and GDPR where applicable.\n\n" +
		"The user will provide a topic for a policy section, and you should generate that section in well-structured markdown format.\n\n" +
		"Take into account the existing content of the policy document to ensure the new section is contextually relevant and maintains a consistent tone and structure. Do not repeat the title of the section if the user's prompt is also the title. Begin directly with the content.\n\n" +
		fmt.Sprintf("You are generating content based on the information in the public Google Drive folder: %s. The documents in this folder contain key information on AI ethics and governance. Your response should reflect the principles and guidelines found in those documents.", corpusURL)
}

func answerInstruction(corpusURL string) string {
	return "You are a helpful Q&A assistant for a company's internal policies. Your purpose is to answer employee questions based *exclusively* on the official policy documents provided.\n\n" +
		fmt.Sprintf("The official policy documents are located in the public Google Drive folder: %s.\n\n", corpusURL) +
		"When a user asks a question, you must:\n" +
		"1.  Consult the information within the documents in the provided Google Drive folder.\n" +
		"2.  Formulate a clear and concise answer based *only* on the content of those documents.\n" +
		"3.  If the answer cannot be found in the documents, you must state: \"" + NotFoundAnswer + "\"\n" +
		"4.  Do not invent, infer, or use any external knowledge. Your knowledge is strictly limited to the provided documents."
}

func draftPrompt(topic, document string) string {
	return fmt.Sprintf("Here is the policy document so far:\n<document>\n%s\n</document>\n\nNow, please write the section on: \"%s\".\n", document, topic)
}
