package tuf

import (
	"fmt"
	"time"
)

// tufTimeLayout is the exact timestamp format TUF metadata uses: RFC 3339
// with a literal "Z" and no sub-second component.
const tufTimeLayout = "2006-01-02T15:04:05Z"

func parseRFC3339(s string, out *time.Time) error {
	t, err := time.Parse(tufTimeLayout, s)
	if err != nil {
		// Fall back to full RFC 3339 in case a peer emitted fractional
		// seconds or a non-Z offset; we still normalize on write.
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("tuf: invalid expires timestamp %q: %w", s, err)
		}
	}
	*out = t.UTC()
	return nil
}

// formatRFC3339 renders an expires time for the payload MarshalJSON
// methods: converted to UTC, truncated to the second and formatted with
// tufTimeLayout, matching the on-wire format TUF expects.
func formatRFC3339(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(tufTimeLayout)
}
