package lang

import "fmt"

// 双语固定文案。占位符由配置中的联系方式填充。

var handoffMessages = map[string]string{
	English: "I'm connecting you with a Colorix team member right now. 🙏\n\n" +
		"Our staff will reach out to you shortly on WhatsApp.\n" +
		"You can also call us directly: *%s*",
	French: "Je vous mets en contact avec un membre de l'équipe Colorix. 🙏\n\n" +
		"Notre équipe vous contactera bientôt sur WhatsApp.\n" +
		"Vous pouvez aussi nous appeler : *%s*",
}

var greetingMessages = map[string]string{
	English: "Hello! I'm *ColorixBot*, your Colorix Groupe assistant.\n\n" +
		"I can help you with:\n" +
		"• Products and printing options\n" +
		"• How to place an order\n" +
		"• Delivery and payment info\n" +
		"• Getting a custom quote\n\n" +
		"What can I help you with today?",
	French: "Bonjour ! Je suis *ColorixBot*, votre assistant Colorix Groupe.\n\n" +
		"Je peux vous aider avec :\n" +
		"• Produits et options d'impression\n" +
		"• Comment passer une commande\n" +
		"• Livraison et paiement\n" +
		"• Obtenir un devis personnalisé\n\n" +
		"Comment puis-je vous aider aujourd'hui ?",
}

var mediaMessages = map[string]string{
	English: "Thank you for the file! 📎\n\n" +
		"To submit design files please upload at %s or call: *%s* 😊",
	French: "Merci pour le fichier ! 📎\n\n" +
		"Pour soumettre des fichiers, déposez-les sur %s ou appelez : *%s* 😊",
}

var apologyMessages = map[string]string{
	English: "⚠️ Something went wrong. Please call us directly: *%s*",
	French:  "⚠️ Une erreur s'est produite. Appelez-nous directement : *%s*",
}

// HandoffMessage 返回转人工的固定回复。
func HandoffMessage(language, contactPhone string) string {
	return fmt.Sprintf(pick(handoffMessages, language), contactPhone)
}

// GreetingMessage 返回问候语。
func GreetingMessage(language string) string {
	return pick(greetingMessages, language)
}

// MediaMessage 返回收到媒体文件时的固定回复。
func MediaMessage(language, website, contactPhone string) string {
	return fmt.Sprintf(pick(mediaMessages, language), website, contactPhone)
}

// ApologyMessage 返回整轮处理失败时的兜底道歉文案。
func ApologyMessage(language, contactPhone string) string {
	return fmt.Sprintf(pick(apologyMessages, language), contactPhone)
}
