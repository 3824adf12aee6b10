package session

import (
	"testing"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, no unexpected nil dereferences, graceful error handling.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		UserID:        "user1",
		AccessDigest:  Digest("a"),
		RefreshDigest: Digest("r"),
		CreatedAt:     1700000000,
		ExpiresAt:     1700003600,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 40 {
		f.Add(encoded[:40])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		if s == nil {
			t.Fatal("Decode returned nil session without error")
		}

		// Round trip must be stable.
		re, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode failed: %v", err)
		}
		if string(re) != string(data) {
			t.Fatal("re-encoded blob differs from input")
		}
	})
}
