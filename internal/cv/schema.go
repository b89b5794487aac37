package cv

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// contentSchema 是简历文档的边界校验 Schema。
// 存储层不做校验，所有进入数据库的内容必须先通过这里。
const contentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["template", "personalInfo"],
  "properties": {
    "template": {
      "type": "string",
      "enum": ["modern", "classic", "creative", "minimal", "professional", "elegant"]
    },
    "personalInfo": {
      "type": "object",
      "required": ["fullName", "email"],
      "properties": {
        "fullName": {"type": "string", "minLength": 1},
        "email": {"type": "string", "minLength": 3}
      }
    },
    "summary": {"type": "string", "maxLength": 1000},
    "experience": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["jobTitle", "company"],
        "properties": {
          "jobTitle": {"type": "string", "minLength": 1},
          "company": {"type": "string", "minLength": 1},
          "current": {"type": "boolean"}
        }
      }
    },
    "education": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["degree", "institution"],
        "properties": {
          "degree": {"type": "string", "minLength": 1},
          "institution": {"type": "string", "minLength": 1}
        }
      }
    },
    "skills": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "level": {"type": "string", "enum": ["", "beginner", "intermediate", "advanced", "expert"]}
        }
      }
    },
    "languages": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "proficiency": {"type": "string", "enum": ["", "basic", "conversational", "fluent", "native"]}
        }
      }
    },
    "certifications": {"type": "array", "items": {"type": "object", "required": ["name"]}},
    "projects": {"type": "array", "items": {"type": "object", "required": ["title"]}},
    "references": {"type": "array", "items": {"type": "object", "required": ["name"]}},
    "customSections": {"type": "array", "items": {"type": "object"}},
    "settings": {
      "type": "object",
      "properties": {
        "primaryColor": {"type": "string"},
        "fontFamily": {"type": "string"},
        "fontSize": {"type": "string", "enum": ["small", "medium", "large"]}
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(contentSchema)

// ValidateContent 用 Schema 校验原始 JSON 文档，返回可读的错误描述。
func ValidateContent(raw []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("validate cv content: %w", err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("invalid cv content: %s", strings.Join(details, "; "))
}
