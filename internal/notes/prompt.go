package notes

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DefaultTemplate is the note layout the model is asked to follow.
const DefaultTemplate = `DENTAL CLINICAL NOTE
Date: [Date]
Time: [Time]
Patient Name: [Patient Name]
Dentist Name: [Dentist Name]

CLINICAL NOTES:
CHIEF COMPLAINT
[Patient's main complaint and reason for visit]

CLINICAL FINDINGS
[Detailed clinical observations, tooth conditions, and diagnostic findings]

TREATMENT PROVIDED
[Specific treatments, procedures, and interventions performed]

MEDICATIONS
[Prescribed medications with dosages and instructions]

FOLLOW-UP
[Follow-up instructions and recommendations]

Note: Please verify all information above.`

const systemPrompt = `You convert informal dental dictation into formal clinical notes. ` +
	`Follow the given template exactly, use professional dental terminology and tooth notation, ` +
	`write "None documented" for any section the dictation does not cover, and never use asterisks.`

func userPrompt(req Request, template string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TEMPLATE TO FOLLOW:\n---\n%s\n---\n\n", template)
	fmt.Fprintf(&b, "Date: %s\n", now.Format("January 02, 2006"))
	fmt.Fprintf(&b, "Time: %s\n", now.Format("03:04 PM"))
	fmt.Fprintf(&b, "Patient Name: %s\n", req.PatientName)
	fmt.Fprintf(&b, "Dentist Name: %s\n\n", req.dentist())
	fmt.Fprintf(&b, "Transcription to convert:\n%s\n\n", req.Transcription)
	b.WriteString("Generate the clinical note following the exact template format above.")
	return b.String()
}

const basicNote = `CHIEF COMPLAINT:
None documented.

CLINICAL FINDINGS:
None documented.

TREATMENT PROVIDED:
None documented.

MEDICATIONS:
None documented.

FOLLOW-UP:
None documented.

Note: This clinical note was generated with AI assistance. Please verify all information for accuracy.`

var (
	reTooth    = regexp.MustCompile(`#?\s*(\d{1,2})\b`)
	reDuration = regexp.MustCompile(`(\d+)\s*(days?|weeks?|times?|hours?)\b`)

	symptomWords    = []string{"pain", "ache", "sensitivity", "discomfort", "swelling", "bleeding"}
	medicationWords = []string{"ibuprofen", "antibiotics", "painkillers", "painkiller", "medication", "tylenol", "advil"}
)

// BasicNote fills the plain template with what can be picked out of the
// transcription without a model: tooth numbers, symptoms, medications and
// follow-up intervals.
func BasicNote(transcription string) string {
	note := basicNote
	lower := strings.ToLower(transcription)

	if teeth := uniqueMatches(reTooth, transcription, 1); len(teeth) > 0 {
		for i, t := range teeth {
			teeth[i] = "#" + t
		}
		note = strings.Replace(note, "CLINICAL FINDINGS:\nNone documented.",
			"CLINICAL FINDINGS:\nExamination of tooth "+strings.Join(teeth, ", ")+".", 1)
	}
	if symptoms := containedWords(lower, symptomWords); len(symptoms) > 0 {
		note = strings.Replace(note, "CHIEF COMPLAINT:\nNone documented.",
			"CHIEF COMPLAINT:\nPatient presented with "+strings.Join(symptoms, ", ")+".", 1)
	}
	if meds := containedWords(lower, medicationWords); len(meds) > 0 {
		joined := strings.Join(meds, ", ")
		note = strings.Replace(note, "MEDICATIONS:\nNone documented.",
			"MEDICATIONS:\n"+strings.ToUpper(joined[:1])+joined[1:]+" recommended.", 1)
	}
	if m := reDuration.FindAllStringSubmatch(lower, -1); len(m) > 0 {
		periods := make([]string, len(m))
		for i, g := range m {
			periods[i] = g[1] + " " + g[2]
		}
		note = strings.Replace(note, "FOLLOW-UP:\nNone documented.",
			"FOLLOW-UP:\nRecommended follow-up in "+strings.Join(periods, ", ")+".", 1)
	}
	return note
}

func uniqueMatches(re *regexp.Regexp, s string, group int) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		if !seen[m[group]] {
			seen[m[group]] = true
			out = append(out, m[group])
		}
	}
	return out
}

func containedWords(s string, words []string) []string {
	var out []string
	for _, w := range words {
		if strings.Contains(s, w) {
			out = append(out, w)
		}
	}
	return out
}
