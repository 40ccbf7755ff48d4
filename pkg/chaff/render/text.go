package render

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/jamesainslie/chaff/pkg/chaff/types"
)

const dateLayout = "January 2, 2006"

func renderText(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	p := newProse(spec.Language, rng)

	var head strings.Builder
	if spec.Synthetic {
		head.WriteString("Reminder\n\n")
		for _, line := range c.HintLines {
			head.WriteString(line + "\n")
		}
		head.WriteString("\n")
	} else {
		fmt.Fprintf(&head, "%s\n%s\n\n", title(spec), c.DocumentDate.Format(dateLayout))
		head.WriteString(p.paragraph() + "\n\n")
		for _, line := range c.HintLines {
			head.WriteString(line + "\n")
		}
		if len(c.HintLines) > 0 {
			head.WriteString("\n")
		}
	}
	return []byte(head.String() + p.text(int(spec.TargetSize)-head.Len())), nil
}

func renderMarkdown(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	p := newProse(spec.Language, rng)

	var head strings.Builder
	fmt.Fprintf(&head, "# %s\n\n_%s_\n\n", title(spec), c.DocumentDate.Format(dateLayout))
	head.WriteString(p.paragraph() + "\n\n")
	if len(c.HintLines) > 0 {
		for _, line := range c.HintLines {
			head.WriteString("> " + line + "\n")
		}
		head.WriteString("\n")
	}
	head.WriteString("## Notes\n\n")
	return []byte(head.String() + p.text(int(spec.TargetSize)-head.Len())), nil
}

// attachmentGroups orders the headings an email lists its attachments under.
var attachmentGroups = []struct {
	heading string
	kinds   []types.FileType
}{
	{"Documents", []types.FileType{types.Document, types.Text, types.Email}},
	{"Visual Materials", []types.FileType{types.Image}},
	{"Data Files", []types.FileType{types.Spreadsheet, types.Structured}},
}

func renderEmail(spec *types.FileSpec, c Content, rng *rand.Rand) ([]byte, error) {
	p := newProse(spec.Language, rng)
	sender, recipient := p.person(), p.person()
	domain := p.pick(mailDomains)

	var head strings.Builder
	fmt.Fprintf(&head, "From: %s <%s>\r\n", sender, address(sender, domain))
	fmt.Fprintf(&head, "To: %s <%s>\r\n", recipient, address(recipient, domain))
	fmt.Fprintf(&head, "Subject: %s\r\n", title(spec))
	fmt.Fprintf(&head, "Date: %s\r\n", c.DocumentDate.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	fmt.Fprintf(&head, "Message-ID: <%016x@%s>\r\n", rng.Uint64(), domain)
	head.WriteString("MIME-Version: 1.0\r\n")
	head.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&head, "Hello %s,\n\n%s\n\n", strings.Fields(recipient)[0], p.paragraph())

	attachments := byRole(c.References, types.Attachment)
	if len(attachments) > 0 {
		head.WriteString("Attached files:\n")
		for _, g := range attachmentGroups {
			var names []string
			for _, a := range attachments {
				for _, t := range g.kinds {
					if a.Type == t {
						names = append(names, a.Name)
					}
				}
			}
			if len(names) == 0 {
				continue
			}
			fmt.Fprintf(&head, "\n%s:\n", g.heading)
			for _, n := range names {
				fmt.Fprintf(&head, "  - %s\n", n)
			}
		}
		head.WriteString("\n")
	}

	if len(c.HintLines) > 0 {
		head.WriteString("Security Notes:\n")
		for _, line := range c.HintLines {
			fmt.Fprintf(&head, "  %s\n", line)
		}
		head.WriteString("\n")
	}

	tail := fmt.Sprintf("\nBest regards,\n%s\n%s\n", sender, p.pick(departments))
	body := p.text(int(spec.TargetSize) - head.Len() - len(tail))
	return []byte(head.String() + body + tail), nil
}
