package mailer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/admission-leads-api/pkg/config"
)

func TestBuildMessage(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{FromEmail: "desk@example.edu", FromName: "Admissions Desk"})

	msg, err := m.build(Message{
		To:          []string{"school-liaison@example.edu"},
		Subject:     "Forwarded leads",
		Body:        "3 leads attached",
		Attachments: []Attachment{{FileName: "forwarded.csv", Content: []byte("id,name\n")}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = msg.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Forwarded leads")
	assert.Contains(t, raw, "school-liaison@example.edu")
	assert.Contains(t, raw, "forwarded.csv")
}

func TestBuildRejectsNoRecipients(t *testing.T) {
	m := NewSMTPMailer(config.SMTPConfig{FromEmail: "desk@example.edu"})
	_, err := m.build(Message{Subject: "x"})
	assert.Error(t, err)
}
