package openai

import (
	"fmt"
	"strings"

	"github.com/poiesic/tutorder/core"
)

const splitSystemPrompt = "你是一个专门用于清理和格式化订单数据的助手。" +
	"请删除所有无关信息，只保留有效的订单数据。" +
	"请判断订单的分割点，并将每个订单作为单独的条目返回。" +
	"请将清理后的订单列表以 JSON 数组的形式返回，每个元素是一个订单的字符串。" +
	"注意：不要包含任何额外的文本或格式，例如代码块标记、注释或多余的空格。"

const splitUserPromptTemplate = "请清理以下订单数据，删除所有无效信息，并分割成单独的订单：\n\n%s"

const extractSystemPromptTemplate = `你是一个家教订单信息提取助手。从用户给出的一条家教订单中提取以下字段，并以 JSON 对象的形式返回：

%s

规则：
- 只输出 JSON 对象本身，以 { 开头，以 } 结尾，不要包含代码块标记或任何解释。
- 所有字段的值都是字符串。
- 订单中没有提到的字段返回空字符串 ""。
- 不要编造订单中不存在的信息。`

var extractKeys = []string{
	core.FieldOrderNumber,
	core.FieldAddress,
	core.FieldSubject,
	core.FieldSchedule,
	core.FieldRequirements,
	core.FieldPrice,
	core.FieldTeacherGender,
	core.FieldStudentInfo,
}

func buildSplitUserPrompt(chunk string) string {
	return fmt.Sprintf(splitUserPromptTemplate, chunk)
}

func buildExtractSystemPrompt() string {
	quoted := make([]string, len(extractKeys))
	for i, k := range extractKeys {
		quoted[i] = fmt.Sprintf("- %q", k)
	}
	return fmt.Sprintf(extractSystemPromptTemplate, strings.Join(quoted, "\n"))
}
