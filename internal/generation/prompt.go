package generation

import (
	"fmt"
	"strings"

	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const systemPrompt = `You are an expert AI specializing in creating age-appropriate math word problems for Korean elementary school students.`

const allSubTopics = "All sub-topics within the unit"

func buildSetPrompt(spec Spec) string {
	var b strings.Builder

	b.WriteString("Your task is to generate a set of problems based on the user's specifications.\n\n")
	b.WriteString("**Generation Criteria:**\n")
	fmt.Fprintf(&b, "1.  **Total Problems to Generate:** %d\n", spec.Total)
	fmt.Fprintf(&b, "2.  **Grade Level:** %s\n", spec.Grade)
	b.WriteString("3.  **Target Semesters, Units, and Sub-topics:**\n")
	for _, t := range spec.Targets {
		topics := strings.Join(t.SubTopics, ", ")
		if topics == "" {
			topics = allSubTopics
		}
		fmt.Fprintf(&b, "    - Semester: %s, Unit: %s (Sub-topics: %s)\n", t.Semester, t.Unit, topics)
	}
	b.WriteString("4.  **Difficulty Level Distribution & Definitions:**\n")
	for _, d := range problem.Difficulties {
		n := spec.Counts[d]
		if n <= 0 {
			continue
		}
		fmt.Fprintf(&b, "    - **%s** (%s): %d 문제\n      - *정의:* %s\n", d.Label(), d, n, d.Definition())
	}

	b.WriteString("\n**Instructions:**\n")
	fmt.Fprintf(&b, "- Create a total of %d distinct math word problems that fit all the criteria above.\n", spec.Total)
	b.WriteString("- Strictly adhere to the number of problems required for each difficulty level.\n")
	b.WriteString("- Ensure the problems are creative, engaging, and contextually relevant for Korean elementary students.\n")
	b.WriteString("- The numbers used in the problems should be appropriate for the specified grade level.\n")
	b.WriteString("- The answer must include both the calculation process and the final answer with the correct units, ending with \"답: \" followed by the final answer.\n")
	b.WriteString("- Distribute the problems evenly across the selected units and sub-topics.\n")
	b.WriteString("- Set \"difficulty\" to one of Conceptual, Applied, Advanced.\n")
	b.WriteString("- The output MUST be a JSON object containing a single key \"problems\" which is an array of problem objects. Do not output any other text or markdown.\n")
	return b.String()
}

func buildReplacePrompt(p problem.Problem, d problem.Difficulty) string {
	var b strings.Builder

	b.WriteString("Your task is to create a new, unique math problem that is different from the one provided below, ")
	b.WriteString("but covers the same learning objective with a new difficulty.\n\n")
	b.WriteString("**Original Problem (for reference, do not copy):**\n")
	fmt.Fprintf(&b, "%q\n\n", p.Question)
	b.WriteString("**Criteria for the New Problem:**\n")
	fmt.Fprintf(&b, "1.  **Grade Level:** %s\n", p.Grade)
	fmt.Fprintf(&b, "2.  **Semester:** %s\n", p.Semester)
	fmt.Fprintf(&b, "3.  **Unit:** %s\n", p.Unit)
	fmt.Fprintf(&b, "4.  **Specific Sub-topic:** %s\n", p.SubTopic)
	fmt.Fprintf(&b, "5.  **NEW Difficulty Level:** %s\n", d)
	fmt.Fprintf(&b, "   - **Definition:** %s\n", d.Definition())

	b.WriteString("\n**Instructions:**\n")
	fmt.Fprintf(&b, "- Generate exactly ONE new word problem with the new difficulty: %s.\n", d)
	b.WriteString("- The new problem must be thematically and numerically different from the original.\n")
	b.WriteString("- The answer must include both the calculation process and the final answer with the correct units, ending with \"답: \" followed by the final answer.\n")
	b.WriteString("- The output must be a single JSON object. Do not output any other text or markdown.\n")
	return b.String()
}
