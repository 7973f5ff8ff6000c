package generator

import (
	"fmt"
	"strings"
)

var difficultyWording = map[string]string{
	"easy":   "basic level with simple concepts",
	"medium": "intermediate level with moderate complexity",
	"hard":   "advanced level with complex reasoning",
}

func describeDifficulty(difficulty string) string {
	if w, ok := difficultyWording[difficulty]; ok {
		return w
	}
	return "intermediate level"
}

// generationPrompt asks the provider for one question as a bare JSON
// object.
func generationPrompt(section, topic, gradeLevel, difficulty string) string {
	return fmt.Sprintf(`Generate a unique, high-quality multiple-choice question for exam preparation.

Requirements:
- Section: %q
- Topic: %q
- Grade Level: %q
- Difficulty: %q

IMPORTANT INSTRUCTIONS:
1. Create an original question that tests understanding of the concept
2. Provide exactly 4 unique options with only one correct answer
3. Include a detailed explanation

Your response MUST be a single, valid JSON object with these exact keys:
- "question_text": Clear, well-formed question
- "options": Array of exactly 4 unique answer choices
- "correct_answer": Must match one of the options exactly
- "explanation": Detailed explanation of why the answer is correct
- "section": The section name
- "topic": The topic name

Do not include any text or formatting outside the JSON object.`,
		section, topic, gradeLevel, describeDifficulty(difficulty))
}

// BulkPrompt builds the copy-paste prompt handed to users who generate
// questions in their own chat UI for manual mode.
func BulkPrompt(numQuestions int, topics map[string][]string, gradeLevel, difficulty string) string {
	sections := make([]string, 0, len(topics))
	var topicList []string
	for section, ts := range topics {
		sections = append(sections, section)
		topicList = append(topicList, ts...)
	}

	return fmt.Sprintf(`Generate exactly %d unique multiple-choice questions for exam preparation.

Requirements:
- Sections: %s
- Topics: %s
- Grade Level: %q
- Difficulty: %q

IMPORTANT INSTRUCTIONS:
1. Generate exactly %d questions, no more, no less
2. Each question must have exactly 4 unique options with only one correct answer
3. Distribute questions evenly across the provided topics
4. Include detailed explanations for each answer

Response format: Return a JSON array of exactly %d objects, each with:
- "question_text": Clear, well-formed question
- "options": Array of exactly 4 unique answer choices
- "correct_answer": Must match one of the options exactly
- "explanation": Detailed explanation
- "section": The section name
- "topic": The topic name

Ensure the response is valid JSON with exactly %d question objects.`,
		numQuestions,
		strings.Join(sections, ", "),
		strings.Join(topicList, ", "),
		gradeLevel, describeDifficulty(difficulty),
		numQuestions, numQuestions, numQuestions)
}

// explanationPrompt builds the follow-up question prompt for ask-ai.
func explanationPrompt(questionText, explanation, userQuery string) string {
	return fmt.Sprintf("Context:\n- Question: %s\n- Explanation: %s\n\nBased on the context, answer the user query concisely.\nUser Query: %q",
		questionText, explanation, userQuery)
}
