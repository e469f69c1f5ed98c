// internal/directory/insights.go
package directory

import (
	"encoding/json"
	"sort"
	"time"

	jmes "github.com/jmespath/go-jmespath"
)

// Expressions evaluated against each raw sign-in record.
var (
	exprAppID   = jmes.MustCompile("appId")
	exprAppName = jmes.MustCompile("appDisplayName")
	exprWhen    = jmes.MustCompile("createdDateTime")
)

// AppActivity is the per-application rollup of sign-in records.
type AppActivity struct {
	AppID       string    `json:"app_id"`
	DisplayName string    `json:"display_name"`
	SignIns     int       `json:"sign_ins"`
	LastSeen    time.Time `json:"last_seen"`
}

// SummarizeSignIns folds raw sign-in payloads into per-application
// activity, most active first. Malformed records are skipped; best effort
// like the reads that feed it.
func SummarizeSignIns(signIns []json.RawMessage) []AppActivity {
	byApp := map[string]*AppActivity{}
	for _, raw := range signIns {
		var rec any
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		id := searchString(exprAppID, rec)
		if id == "" {
			continue
		}
		a, ok := byApp[id]
		if !ok {
			a = &AppActivity{AppID: id}
			byApp[id] = a
		}
		a.SignIns++
		if name := searchString(exprAppName, rec); name != "" {
			a.DisplayName = name
		}
		if ts := searchString(exprWhen, rec); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil && t.After(a.LastSeen) {
				a.LastSeen = t
			}
		}
	}
	out := make([]AppActivity, 0, len(byApp))
	for _, a := range byApp {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SignIns != out[j].SignIns {
			return out[i].SignIns > out[j].SignIns
		}
		return out[i].AppID < out[j].AppID
	})
	return out
}

func searchString(e *jmes.JMESPath, doc any) string {
	v, err := e.Search(doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
