package recommend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/teranos/matinee/errors"
)

type rawReply struct {
	Recommendations []rawRecommendation `json:"recommendations"`
}

type rawRecommendation struct {
	Title  string   `json:"title"`
	Year   flexYear `json:"year"`
	Reason string   `json:"reason"`
}

// flexYear tolerates models emitting years as numbers, floats, or quoted
// strings ("1999", 1999, 1999.0 all decode to 1999).
type flexYear int

func (y *flexYear) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*y = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return errors.Wrapf(err, "invalid year %q", s)
	}
	*y = flexYear(int(f))
	return nil
}

// extractJSON recovers the JSON object from a noisy model reply: markdown
// fences are stripped and the widest {...} window is taken when prose
// surrounds the payload.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// parseReply validates one model reply against the strict contract: a
// recommendations array with exactly want well-formed entries.
func parseReply(raw string, want int, explain bool) ([]Recommendation, error) {
	payload := extractJSON(raw)

	var reply rawReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, errors.Wrap(err, "reply is not valid JSON")
	}
	if reply.Recommendations == nil {
		return nil, errors.New(`reply is missing the "recommendations" array`)
	}

	recs := make([]Recommendation, 0, len(reply.Recommendations))
	for _, r := range reply.Recommendations {
		title := strings.TrimSpace(r.Title)
		if title == "" || r.Year == 0 {
			continue
		}
		rec := Recommendation{Title: title, Year: int(r.Year)}
		if explain {
			rec.Reason = strings.TrimSpace(r.Reason)
		}
		recs = append(recs, rec)
	}

	if len(recs) != want {
		return nil, errors.Newf("expected exactly %d recommendations, got %d usable entries", want, len(recs))
	}
	return recs, nil
}
