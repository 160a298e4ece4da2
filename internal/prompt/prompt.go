// Package prompt fills the fixed waste analysis instruction with the image description.
package prompt

import "strings"

// inputSlot is the single variable in Template.
const inputSlot = "{input_content}"

// Template instructs the model to answer with the WasteReport fields. The key
// names must stay in sync with models.WasteReport.
const Template = `
Analyze this waste material and provide detailed information about:
1. Waste type (e.g., plastic, organic, electronic, hazardous)
2. Safe disposal methods
3. Recycling options if applicable
4. Safety precautions
5. Environmental impact

Provide the response in a proper JSON format with these keys:
- waste_type (string)
- disposal_methods (array of strings)
- recycling_options (array of strings, optional)
- safety_precautions (array of strings)
- environmental_impact (string)

Input: {input_content}
`

// Build renders the prompt for a normalized image description.
func Build(description string) string {
	return strings.Replace(Template, inputSlot, "Image analysis of waste material: "+description, 1)
}
