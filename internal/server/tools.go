package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the label image file",
	}
}

func allergensProperty(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"items":       map[string]interface{}{"type": "string"},
		"description": description,
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and size. The image is cached for later scans.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Label Scanning
		{
			Name: "label_scan",
			Description: "Read the printed text of a food label photo and optionally flag allergens in it. " +
				"Returns one line per detected text region. When no region is detected the whole image is read " +
				"and the text starts with \"Full image: \".",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"allergens": allergensProperty(
						"Optional allergens to look for. Category names such as \"Dairy\" expand to all of their items."),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "label_detect_regions",
			Description: "Find the text regions of a label photo without reading them. Optionally returns a PNG with the numbered regions drawn on the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"overlay": map[string]interface{}{
						"type":        "boolean",
						"description": "Include a base64 PNG with region outlines. Default false",
						"default":     false,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Optional scale factor for the overlay image. Default 1.0",
						"default":     1.0,
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels. Default 2",
						"default":     2,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name: "label_status",
			Description: "Report whether the OCR models are loaded and which recognizer backend is active. " +
				"With the tesseract backend it also reports the Tesseract version and availability.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},

		// Allergens
		{
			Name:        "label_flag_allergens",
			Description: "Check text for allergens with a case-insensitive substring match. Category names expand to their items.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"text": map[string]interface{}{
						"type":        "string",
						"description": "Label text, for example the output of label_scan",
					},
					"allergens": allergensProperty("Allergen names or categories to look for"),
				},
				"required": []string{"text", "allergens"},
			},
		},
		{
			Name:        "allergen_catalog",
			Description: "List the allergen categories and the ingredient names in each.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
