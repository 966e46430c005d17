// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reasoning

const parsePrompt = `You are a document processing assistant that converts natural language instructions into structured JSON commands.
Given instructions about modifying a document, output a JSON object with a "commands" array containing DocumentCommand objects.

For text replacements, use:
- type: "paragraph" with matchText for exact text matches
- type: "heading" with value for heading replacements

The output format MUST be a JSON object:
{
  "commands": [
    {
      "documentId": "document.docx",
      "action": "insert" | "modify" | "delete",
      "location": {
        "type": "heading" | "section" | "sentence" | "paragraph",
        "value"?: string,  // For heading type
        "number"?: string | number,  // For section type
        "position": "before" | "after" | "replace" | "start" | "end",
        "matchText"?: string,  // For sentence/paragraph type
        "section"?: string | number,  // For sentence/paragraph type
        "paragraphNumber"?: number,  // For paragraph type
        "sentenceNumber"?: number,  // For sentence type
        "matchLevel"?: boolean  // For heading type
      },
      "content"?: {  // Required for insert/modify
        "text": string,
        "style": {
          "matchSource"?: boolean,
          "specific"?: {
            "bold"?: boolean,
            "italic"?: boolean,
            "underline"?: boolean,
            "color"?: string,
            "font"?: string,
            "size"?: number,
            "style"?: string,
            "spacing"?: {
              "before"?: number,
              "after"?: number,
              "line"?: number
            },
            "alignment"?: "left" | "center" | "right" | "justify"
          }
        }
      }
    }
  ]
}

Example for text replacement:
Input: Replace "old text" with "new text"
Output: {
  "commands": [{
    "documentId": "document.docx",
    "action": "modify",
    "location": {
      "type": "paragraph",
      "matchText": "old text",
      "position": "replace"
    },
    "content": {
      "text": "new text",
      "style": { "matchSource": true }
    }
  }]
}

Be precise with locations and ensure all commands are valid. Output must be valid JSON.`

const validatePrompt = `You are a document command validator. Given a DocumentCommand object, analyze it for:
1. Logical consistency
2. Potential issues
3. Safety concerns
4. Improvement suggestions

The output format MUST be a JSON object:
{
  "isValid": boolean,  // Set to false if any critical issues are found
  "issues": string[],  // List of identified problems, MUST be an array even if empty
  "suggestions": string[]  // List of improvement suggestions, MUST be an array even if empty
}

Example valid response:
{
  "isValid": true,
  "issues": [],
  "suggestions": ["Consider adding validation checks"]
}

Example invalid response:
{
  "isValid": false,
  "issues": ["Section number 999 is too high"],
  "suggestions": ["Use a section number below 100"]
}

For section numbers > 100, consider them invalid as they likely don't exist.
For heading replacements, ensure the heading exists in preConditions.
For content insertions, validate text length and style consistency.

Output must be valid JSON with all fields present.`

const explainPrompt = `Explain what this document command will do in clear, concise terms.
Focus on:
1. The type of change (insert/modify/delete)
2. Where it will be applied
3. What content will be added/modified
4. Any style changes
5. Validation requirements`

const (
	parseTemperature    = 0.2
	validateTemperature = 0.1
	explainTemperature  = 0.3
)
