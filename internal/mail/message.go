package mail

import (
	"bufio"
	"cmp"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Message struct {
	Subject string
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo string
	Date    time.Time

	Body string
	HTML string

	Attachments []Attachment
}

// Recipients is every envelope recipient, Bcc included.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	out = append(out, m.To...)
	out = append(out, m.Cc...)
	return append(out, m.Bcc...)
}

// Attach adds a file to the message, guessing its type from the extension.
func (m *Message) Attach(filename string, data []byte) {
	ct := mime.TypeByExtension(path.Ext(filename))
	if ct == "" {
		ct = "application/octet-stream"
	}
	m.Attachments = append(m.Attachments, Attachment{Filename: filename, ContentType: ct, Data: data})
}

func (m *Message) validateHeaders() error {
	values := append([]string{m.Subject, m.From, m.ReplyTo}, m.Recipients()...)
	for _, v := range values {
		if strings.ContainsAny(v, "\r\n") {
			return ErrBadHeader
		}
	}
	return nil
}

// ASCIIFilename folds name to plain ASCII, dropping accents and anything
// that has no ASCII form.
func ASCIIFilename(name string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(name) {
		if r >= 0x20 && r < utf8.RuneSelf && r != '"' && r != '\\' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "attachment"
	}
	return out
}

// Render writes the message as RFC 5322 text. Bcc is never written.
func (m *Message) Render(w io.Writer, asciiAttachments bool) error {
	bw := bufio.NewWriter(w)

	h := textproto.MIMEHeader{}
	h.Set("From", m.From)
	if len(m.To) > 0 {
		h.Set("To", strings.Join(m.To, ", "))
	}
	if len(m.Cc) > 0 {
		h.Set("Cc", strings.Join(m.Cc, ", "))
	}
	if m.ReplyTo != "" {
		h.Set("Reply-To", m.ReplyTo)
	}
	h.Set("Subject", mime.QEncoding.Encode("utf-8", m.Subject))
	h.Set("Date", m.Date.Format(time.RFC1123Z))
	h.Set("Message-Id", messageID(m.From))
	h.Set("Mime-Version", "1.0")

	bh, writeBody := m.body()
	if len(m.Attachments) == 0 {
		for k, v := range bh {
			h[k] = v
		}
		writeHeader(bw, h)
		if err := writeBody(bw); err != nil {
			return err
		}
		return bw.Flush()
	}

	mw := multipart.NewWriter(bw)
	h.Set("Content-Type", mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": mw.Boundary()}))
	writeHeader(bw, h)

	pw, err := mw.CreatePart(bh)
	if err != nil {
		return err
	}
	if err := writeBody(pw); err != nil {
		return err
	}

	for _, a := range m.Attachments {
		name := a.Filename
		if asciiAttachments {
			name = ASCIIFilename(name)
		}
		ph := textproto.MIMEHeader{}
		ph.Set("Content-Type", a.ContentType)
		ph.Set("Content-Transfer-Encoding", "base64")
		ph.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
		pw, err := mw.CreatePart(ph)
		if err != nil {
			return err
		}
		if err := writeBase64(pw, a.Data); err != nil {
			return err
		}
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return bw.Flush()
}

// body returns the headers of the message body and a function writing it.
func (m *Message) body() (textproto.MIMEHeader, func(io.Writer) error) {
	h := textproto.MIMEHeader{}
	if m.HTML == "" {
		h.Set("Content-Type", "text/plain; charset=utf-8")
		h.Set("Content-Transfer-Encoding", "quoted-printable")
		return h, func(w io.Writer) error { return writeQP(w, m.Body) }
	}

	boundary := multipart.NewWriter(io.Discard).Boundary()
	h.Set("Content-Type", mime.FormatMediaType("multipart/alternative", map[string]string{"boundary": boundary}))
	return h, func(w io.Writer) error {
		mw := multipart.NewWriter(w)
		if err := mw.SetBoundary(boundary); err != nil {
			return err
		}
		parts := []struct{ ct, text string }{
			{"text/plain; charset=utf-8", m.Body},
			{"text/html; charset=utf-8", m.HTML},
		}
		for _, p := range parts {
			ph := textproto.MIMEHeader{}
			ph.Set("Content-Type", p.ct)
			ph.Set("Content-Transfer-Encoding", "quoted-printable")
			pw, err := mw.CreatePart(ph)
			if err != nil {
				return err
			}
			if err := writeQP(pw, p.text); err != nil {
				return err
			}
		}
		return mw.Close()
	}
}

var headerOrder = map[string]int{"From": 1, "To": 2, "Cc": 3, "Reply-To": 4, "Subject": 5, "Date": 6}

func writeHeader(w io.Writer, h textproto.MIMEHeader) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	rank := func(k string) int {
		if r, ok := headerOrder[k]; ok {
			return r
		}
		return len(headerOrder) + 1
	}
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Or(cmp.Compare(rank(a), rank(b)), strings.Compare(a, b))
	})
	for _, k := range keys {
		for _, v := range h[k] {
			fmt.Fprintf(w, "%s: %s\r\n", k, v)
		}
	}
	fmt.Fprint(w, "\r\n")
}

func writeQP(w io.Writer, text string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := io.WriteString(qp, text); err != nil {
		return err
	}
	return qp.Close()
}

func writeBase64(w io.Writer, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := io.WriteString(w, enc[:76]+"\r\n"); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := io.WriteString(w, enc+"\r\n")
	return err
}

func messageID(from string) string {
	domain := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 {
		domain = strings.Trim(from[i+1:], "> ")
	}
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return "<" + hex.EncodeToString(b) + "@" + domain + ">"
}
