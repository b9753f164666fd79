package extractor

import (
	"fmt"

	"google.golang.org/genai"
)

const systemPrompt = "你是一个专业的地点提取助手，请严格按照要求的JSON格式返回结果。"

func extractionPrompt(text string) string {
	return fmt.Sprintf(`
你是一个智能旅行助手。请从以下文本中提取具体的地点信息。
对于每个地点，确定其名称、所在的城市、类型（景点 spot / 美食 food / 住宿 hotel / 其他 other）以及相关的上下文描述。
不要编造坐标，坐标将由地图服务后续提供。

请以JSON数组格式返回，每个地点对象包含以下字段：
- name: 地点名称，例如 '都江堰景区'
- city: 城市名称，例如 '成都'
- type: 类型，枚举值 ['spot', 'food', 'hotel', 'other']
- context: 原文中关于该地点的描述
如果只能返回JSON对象，请把数组放在 "locations" 字段中。

待解析文本: "%s"

请确保返回的是有效的JSON格式，不要包含其他文字。
`, text)
}

// locationsSchema is the structured output shape for providers that support one.
var locationsSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":    {Type: genai.TypeString, Description: "地点名称，例如 '都江堰景区'"},
			"city":    {Type: genai.TypeString, Description: "城市名称，例如 '成都'"},
			"type":    {Type: genai.TypeString, Enum: []string{"spot", "food", "hotel", "other"}},
			"context": {Type: genai.TypeString, Description: "原文中关于该地点的描述"},
		},
		Required: []string{"name", "city", "type", "context"},
	},
}
