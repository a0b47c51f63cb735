// kindred-devstub is a local stand-in for the external push and moderation
// services, for developing the messaging core without real credentials.
// Pushes are printed instead of delivered; moderation applies a small
// blocklist.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
)

type pushRequest struct {
	RecipientID string `json:"recipient_id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	MatchID     string `json:"match_id"`
}

type validateRequest struct {
	Text string `json:"text"`
}

type validateResponse struct {
	IsValid bool   `json:"is_valid"`
	Reason  string `json:"reason"`
}

// Rough stand-in for the production policy: enough to exercise the
// rejection path end to end.
var blocked = []string{"spam", "http://", "venmo"}

func main() {
	var mu sync.Mutex
	delivered := 0

	http.HandleFunc("/push", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var p pushRequest
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		mu.Lock()
		delivered++
		n := delivered
		mu.Unlock()
		fmt.Printf("push #%d -> %s: %s: %s (match %s)\n", n, p.RecipientID, p.Title, p.Body, p.MatchID)
		w.WriteHeader(200)
	})

	http.HandleFunc("/validate", func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var v validateRequest
		if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		out := validateResponse{IsValid: true}
		lower := strings.ToLower(v.Text)
		for _, word := range blocked {
			if strings.Contains(lower, word) {
				out = validateResponse{IsValid: false, Reason: "message contains blocked content"}
				break
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	log.Println("devstub listening on :8091")
	log.Fatal(http.ListenAndServe(":8091", nil))
}
