// Package lang 集中管理双语（英/法）文案模板与廉价的语言启发式判断。
// 这里的检测只服务于存储语言标记与问候分流；
// 回复语言由模型根据提示中的语言指令自行判断。
package lang

import "strings"

// 支持的语言标记。
const (
	English = "en"
	French  = "fr"

	// Default 是历史中找不到语言信号时的兜底语言。
	Default = English
)

// frenchMarkers 是用于存储语言标记的法语关键词集合。
// 与模型的语言判断可能不一致——存储标记只影响后续轮次的
// "最近已知语言" 查询，这是有意的廉价启发式。
var frenchMarkers = []string{
	"bonjour", "salut", "merci", "oui", "non", "je", "nous",
	"vous", "comment", "combien", "quel", "pour", "avec", "est-ce",
	"pouvez", "avez", "voulez", "souhaitez", "livraison", "commande",
}

// greetingWords 命中时直接回复问候语，不走完整编排。
var greetingWords = map[string]struct{}{
	"hi": {}, "hello": {}, "bonjour": {}, "salut": {}, "hey": {},
	"start": {}, "menu": {}, "help": {}, "aide": {},
}

// frenchGreetingWords 用于对问候消息判断语言。
var frenchGreetingWords = map[string]struct{}{
	"bonjour": {}, "salut": {}, "merci": {}, "oui": {}, "non": {},
	"aide": {}, "menu": {}, "allô": {}, "allo": {},
}

// humanRequestKeywords 是显式请求人工的双语关键词集合（小写）。
var humanRequestKeywords = []string{
	"speak to", "talk to", "real person", "human agent", "speak with",
	"talk with", "staff", "manager", "personnel", "representative",
	"parler à", "un agent", "responsable", "une personne",
}

// handoffOfferPhrases 是助手上一轮"要不要转人工"的提示短语（小写）。
var handoffOfferPhrases = []string{
	"would you like to speak", "reply *yes*", "connect you",
	"souhaitez-vous", "répondez *oui*",
}

// affirmativeTokens 是用户确认转人工的双语肯定词（小写）。
var affirmativeTokens = []string{
	"yes", "oui", "yeah", "sure", "please", "ok",
}

// DetectStorageLanguage 用法语关键词匹配计算存储用的粗粒度语言标记。
func DetectStorageLanguage(userText string) string {
	lower := strings.ToLower(userText)
	for _, w := range frenchMarkers {
		if strings.Contains(lower, w) {
			return French
		}
	}
	return English
}

// IsGreeting 判断消息是否为应直接回复问候语的打招呼/菜单类消息。
func IsGreeting(text string) bool {
	if text == "" {
		return true
	}
	_, ok := greetingWords[strings.ToLower(strings.TrimSpace(text))]
	return ok
}

// DetectGreetingLanguage 对问候类短消息做词集语言判断。
func DetectGreetingLanguage(text string) string {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := frenchGreetingWords[w]; ok {
			return French
		}
	}
	return English
}

// ContainsHumanRequest 判断用户消息是否包含显式请求人工的关键词。
func ContainsHumanRequest(userText string) bool {
	lower := strings.ToLower(userText)
	for _, kw := range humanRequestKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ContainsHandoffOffer 判断助手消息是否包含转人工的提议短语。
func ContainsHandoffOffer(assistantText string) bool {
	lower := strings.ToLower(assistantText)
	for _, p := range handoffOfferPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ContainsAffirmative 判断用户消息是否包含肯定词。
func ContainsAffirmative(userText string) bool {
	lower := strings.ToLower(userText)
	for _, t := range affirmativeTokens {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// pick 按语言标记选择文案，未知语言回退英语。
func pick(messages map[string]string, language string) string {
	if msg, ok := messages[language]; ok {
		return msg
	}
	return messages[English]
}
