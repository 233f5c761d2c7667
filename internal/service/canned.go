package service

import "strings"

// Canned replies cover the common support categories when no model is
// available. The widget serves Chinese-market merchants, so rules match both
// Chinese and English phrasing.

const (
	cannedInstallReply = "您可以按照产品说明书中的安装步骤进行操作：先检查配件是否齐全，再按照图示完成安装。如需详细指导，请联系人工客服。" +
		" (Please follow the installation steps in the product manual. Check that all parts are present, then install as illustrated. Contact support for detailed guidance.)"

	cannedTroubleshootReply = "遇到故障时，请先尝试重启设备并检查连接线路。如果问题仍然存在，请记录故障现象并联系人工客服。" +
		" (If you hit a problem, try restarting the device and checking the connections first. If it persists, note the symptoms and contact support.)"

	cannedUsageReply = "关于产品的使用方法，请参考产品说明书的操作指南部分。如有具体问题，欢迎详细描述，我们会尽力帮助您。" +
		" (For usage instructions, see the operation guide in the product manual. Feel free to describe your question in detail.)"

	cannedMaintenanceReply = "日常维护建议：定期清洁设备表面，避免潮湿环境，长期不用时请断开电源。" +
		" (Maintenance tips: clean the device regularly, avoid humid environments, and unplug it when unused for long periods.)"

	cannedDefaultReply = "感谢您的咨询。为了更好地帮助您，请提供更多详细信息，例如产品型号或具体问题描述。" +
		" (Thanks for reaching out. To help you better, please share more detail, such as the product model or a description of the issue.)"

	cannedBusyReply = "当前咨询人数较多，智能助手暂时繁忙，请稍后再试。" +
		" (The assistant is busy right now. Please try again in a moment.)"

	cannedNetworkReply = "网络连接出现问题，暂时无法联系智能助手，请检查网络后重试。" +
		" (There is a connectivity problem reaching the assistant. Please check your network and try again.)"

	multimodalDisabledReply = "当前项目未开启图片识别功能，请用文字描述您的问题。" +
		" (Image analysis is not enabled for this project. Please describe your question in text.)"
)

type cannedRule struct {
	keywords []string
	reply    string
}

var cannedRules = []cannedRule{
	{keywords: []string{"安装", "怎么装", "install", "setup", "set up"}, reply: cannedInstallReply},
	{keywords: []string{"故障", "坏了", "报错", "问题", "not working", "error", "broken", "fail"}, reply: cannedTroubleshootReply},
	{keywords: []string{"使用", "怎么用", "如何用", "how to use", "usage", "operate"}, reply: cannedUsageReply},
	{keywords: []string{"维护", "保养", "清洁", "maintain", "maintenance", "clean"}, reply: cannedMaintenanceReply},
}

// CannedReply picks a deterministic rule-based reply for a user message.
// First matching category wins; no match falls through to a generic ask for
// more detail.
func CannedReply(message string) string {
	message = strings.ToLower(message)
	for _, rule := range cannedRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(message, keyword) {
				return rule.reply
			}
		}
	}
	return cannedDefaultReply
}
