package certificate

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/noah-isme/certdesk-go-api/internal/records"
)

// Kind selects one of the certificate variants.
type Kind string

const (
	KindTestimonial Kind = "testimonial"
	KindTransfer    Kind = "transfer_certificate"
)

// Gender drives pronoun substitution in the paragraph.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

var (
	// ErrUnknownKind is returned for a kind other than testimonial or transfer certificate.
	ErrUnknownKind = errors.New("unknown certificate kind")
	// ErrUnknownGender is returned for a gender other than male or female.
	ErrUnknownGender = errors.New("unknown gender")
)

// ParseKind accepts the canonical kind names plus the short "tc" alias.
func ParseKind(value string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(KindTestimonial):
		return KindTestimonial, nil
	case string(KindTransfer), "tc", "transfer":
		return KindTransfer, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, value)
	}
}

// ParseGender accepts "male" or "female" in any case.
func ParseGender(value string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(GenderMale):
		return GenderMale, nil
	case string(GenderFemale):
		return GenderFemale, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGender, value)
	}
}

// Title is the heading printed in the title box.
func (k Kind) Title() string {
	if k == KindTransfer {
		return "Transfer Certificate"
	}
	return "Testimonial Certificate"
}

type pronouns struct {
	HeShe       string
	HeSheCap    string
	HisHer      string
	HimHer      string
	SonDaughter string
}

func pronounsFor(g Gender) pronouns {
	if g == GenderMale {
		return pronouns{HeShe: "he", HeSheCap: "He", HisHer: "his", HimHer: "him", SonDaughter: "son"}
	}
	return pronouns{HeShe: "she", HeSheCap: "She", HisHer: "her", HimHer: "her", SonDaughter: "daughter"}
}

var paragraphTemplates = map[Kind]*template.Template{
	KindTestimonial: template.Must(template.New("testimonial").Parse(
		"{{.Name}} {{.SonDaughter}} of {{.Father}} and {{.Mother}} is a student of Class: {{.Class}}. " +
			"Bearing ID/Roll: {{.ID}} in {{.Institution}}. " +
			"As per our admission record {{.HisHer}} date of birth is {{.DOB}}. " +
			"To the best of my knowledge {{.HeShe}} was well mannered and possessed a good moral character. " +
			"{{.HeSheCap}} did not indulge {{.HimHer}}self in any activity subversive to the state and discipline during study. " +
			"I wish {{.HimHer}} every success in life!")),
	KindTransfer: template.Must(template.New("transfer_certificate").Parse(
		"{{.Name}}, {{.SonDaughter}} of {{.Father}} and {{.Mother}}, " +
			"was a student of Class {{.Class}} (Bearing ID/Roll: {{.ID}}) at {{.Institution}}. " +
			"As per our record, {{.HisHer}} date of birth is {{.DOB}}. " +
			"During {{.HisHer}} stay, {{.HeShe}} maintained good conduct and discipline. " +
			"We wish {{.HimHer}} every success in future life.")),
}

type paragraphData struct {
	records.Record
	pronouns
	Institution string
}

// Paragraph renders the body text for a certificate.
func Paragraph(kind Kind, rec records.Record, gender Gender, institution string) (string, error) {
	tmpl, ok := paragraphTemplates[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if gender != GenderMale && gender != GenderFemale {
		return "", fmt.Errorf("%w: %q", ErrUnknownGender, gender)
	}

	var buf bytes.Buffer
	data := paragraphData{Record: rec, pronouns: pronounsFor(gender), Institution: institution}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render paragraph: %w", err)
	}
	return buf.String(), nil
}

// FileName returns the download name for a certificate, e.g.
// "testimonial_1001.pdf". Distinct IDs may share a download name.
func FileName(kind Kind, id string) string {
	return fmt.Sprintf("%s_%s.pdf", kind, safeID(id))
}

// StorageName returns the key a certificate is stored under. The hex suffix
// keeps IDs such as "A 17" and "A-17" apart.
func StorageName(kind Kind, id string) string {
	return fmt.Sprintf("%s_%s_%s.pdf", kind, safeID(id), hex.EncodeToString([]byte(strings.TrimSpace(id))))
}

func safeID(id string) string {
	safe := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.TrimSpace(id))
	if safe == "" {
		safe = "unknown"
	}
	return safe
}
