// Package share encodes audits into self-contained share links.
package share

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joescharf/auditwise/internal/models"
	"github.com/joescharf/auditwise/internal/score"
)

// ErrInvalidLink is returned for any share link that cannot be decoded.
var ErrInvalidLink = errors.New("invalid link")

// Path is the route that renders a shared audit.
const Path = "/audit/shared"

// DateLayout formats Payload.CreatedAt.
const DateLayout = "Jan 2, 2006"

// Payload is the read-only snapshot carried in a share link.
type Payload struct {
	Title      string         `json:"title"`
	Issues     []models.Issue `json:"issues"`
	Score      int            `json:"score"`
	DesignType string         `json:"designType"`
	CreatedAt  string         `json:"createdAt"`
}

// NewPayload snapshots issues at time now.
func NewPayload(title string, designType models.DesignType, issues []models.Issue, now time.Time) Payload {
	return Payload{
		Title:      title,
		Issues:     models.CloneIssues(issues),
		Score:      score.NewScorer().Score(issues).Score,
		DesignType: string(designType),
		CreatedAt:  now.Format(DateLayout),
	}
}

// Encode returns base64(JSON(p)), not yet query-escaped.
func Encode(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Link builds {origin}/audit/shared?data=<escaped payload>.
func Link(origin string, p Payload) (string, error) {
	data, err := Encode(p)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(origin, "/") + Path + "?data=" + url.QueryEscape(data), nil
}

// Decode parses the value of the data query parameter. A value that is still
// percent-encoded is unescaped first.
func Decode(data string) (p Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			p, err = Payload{}, ErrInvalidLink
		}
	}()

	if data == "" {
		return Payload{}, ErrInvalidLink
	}
	if strings.Contains(data, "%") {
		unescaped, uerr := url.QueryUnescape(data)
		if uerr != nil {
			return Payload{}, ErrInvalidLink
		}
		data = unescaped
	}
	// "+" survives only when the value skipped form decoding.
	data = strings.ReplaceAll(data, " ", "+")

	raw, derr := base64.StdEncoding.DecodeString(data)
	if derr != nil {
		return Payload{}, ErrInvalidLink
	}
	if !gjson.ValidBytes(raw) || !gjson.ParseBytes(raw).IsObject() {
		return Payload{}, ErrInvalidLink
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidLink
	}
	if p.Issues == nil {
		p.Issues = []models.Issue{}
	}
	return p, nil
}

// DecodeLink extracts and decodes the payload of a full share link.
func DecodeLink(link string) (Payload, error) {
	u, err := url.Parse(link)
	if err != nil {
		return Payload{}, ErrInvalidLink
	}
	return Decode(u.Query().Get("data"))
}
