// Package ace implements the reflect/curate feedback loop that turns
// execution failures into playbook updates.
package ace

import "infomap/internal/llm"

// Impact labels for playbook entries referenced during a run.
const (
	ImpactHelpful = "helpful"
	ImpactHarmful = "harmful"
	ImpactNeutral = "neutral"
)

// PlaybookEvaluation labels one playbook entry's effect on the failed run.
type PlaybookEvaluation struct {
	BulletID string `json:"bullet_id"`
	Impact   string `json:"impact"`
}

// Reflection is the diagnostic agent's structured output.
type Reflection struct {
	Reasoning           string               `json:"reasoning"`
	ErrorIdentification string               `json:"error_identification,omitempty"`
	RootCauseAnalysis   string               `json:"root_cause_analysis,omitempty"`
	CorrectApproach     string               `json:"correct_approach,omitempty"`
	KeyInsight          string               `json:"key_insight,omitempty"`
	PlaybookEvaluation  []PlaybookEvaluation `json:"playbook_evaluation"`
}

// reflectionSchema constrains the reflector's response.
var reflectionSchema = &llm.JSONSchema{
	Name: "reflection",
	Schema: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reasoning": map[string]interface{}{
				"type": "string", "description": "反思的推理链条",
			},
			"error_identification": map[string]interface{}{
				"type": "string", "description": "反思中识别到的错误",
			},
			"root_cause_analysis": map[string]interface{}{
				"type": "string", "description": "反思中识别到的根因分析",
			},
			"correct_approach": map[string]interface{}{
				"type": "string", "description": "反思中识别到的正确方法",
			},
			"key_insight": map[string]interface{}{
				"type": "string", "description": "反思中识别到的关键洞察",
			},
			"playbook_evaluation": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"bullet_id": map[string]interface{}{
							"type": "string", "description": "文件序号",
						},
						"impact": map[string]interface{}{
							"type": "string",
							"enum": []string{ImpactHelpful, ImpactHarmful, ImpactNeutral},
						},
					},
					"required": []string{"bullet_id", "impact"},
				},
			},
		},
		"required": []string{"reasoning", "playbook_evaluation"},
	},
}
