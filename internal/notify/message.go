package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"civicportal/internal/ids"
	"civicportal/internal/models"
)

type Kind string

const (
	KindUserApproved        Kind = "user_approved"
	KindSuggestionApproved  Kind = "suggestion_approved"
	KindSuggestionForwarded Kind = "suggestion_forwarded"
)

// Message is an email ready to be handed to a Sender.
type Message struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	IsHTML    bool      `json:"isHtml"`
	CreatedAt time.Time `json:"createdAt"`
}

var (
	forwardTmpl = template.Must(template.New("forward").Parse(`
<h2>Popular Citizen Suggestion</h2>
<p><strong>Title:</strong> {{.Title}}</p>
<p><strong>Category:</strong> {{.Category}}</p>
<p><strong>Submitted by:</strong> {{.AuthorName}}</p>
<p><strong>Upvotes:</strong> {{.Upvotes}}</p>
<h3>Description:</h3>
<p>{{.Description}}</p>
<hr>
<p>This suggestion has received significant support from citizens and is being forwarded for your consideration.</p>
<p>Visit the platform to see more details and citizen comments.</p>
`))

	userApprovedTmpl = template.Must(template.New("user_approved").Parse(`
<h2>Account Approved</h2>
<p>Hello {{.Name}},</p>
<p>Your account on the {{.Platform}} has been approved!</p>
<p>You can now log in and submit your suggestions for laws and regulations.</p>
<p>Thank you for participating in improving our nation's governance.</p>
`))

	suggestionApprovedTmpl = template.Must(template.New("suggestion_approved").Parse(`
<h2>Suggestion Approved</h2>
<p>Hello {{.Name}},</p>
<p>Your suggestion "{{.Title}}" has been approved and is now visible on the platform.</p>
<p>Other citizens can now see and vote on your suggestion.</p>
<p>Thank you for your contribution!</p>
`))
)

// Composer builds messages with the portal's sender identity.
type Composer struct {
	From            string
	LawmakerAddress string
	PlatformName    string
	now             func() time.Time
}

func NewComposer(from, lawmakerAddress, platformName string) *Composer {
	return &Composer{
		From:            from,
		LawmakerAddress: lawmakerAddress,
		PlatformName:    platformName,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (c *Composer) SuggestionForwarded(s models.Suggestion) (Message, error) {
	return c.build(KindSuggestionForwarded, c.LawmakerAddress,
		"Popular Citizen Suggestion: "+s.Title, forwardTmpl, s)
}

func (c *Composer) UserApproved(u models.User) (Message, error) {
	return c.build(KindUserApproved, u.Email, "Your Account Has Been Approved", userApprovedTmpl, struct {
		Name     string
		Platform string
	}{u.Name, c.PlatformName})
}

func (c *Composer) SuggestionApproved(author models.User, s models.Suggestion) (Message, error) {
	return c.build(KindSuggestionApproved, author.Email, "Your Suggestion Has Been Approved", suggestionApprovedTmpl, struct {
		Name  string
		Title string
	}{author.Name, s.Title})
}

func (c *Composer) build(kind Kind, to, subject string, tmpl *template.Template, data any) (Message, error) {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", kind, err)
	}
	return Message{
		ID:        ids.New(),
		Kind:      kind,
		From:      c.From,
		To:        to,
		Subject:   subject,
		Body:      body.String(),
		IsHTML:    true,
		CreatedAt: c.now(),
	}, nil
}
