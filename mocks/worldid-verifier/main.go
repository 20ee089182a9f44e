package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	defaultPort      = "8083"
	defaultLatencyMs = "50"
)

type VerifyRequest struct {
	NullifierHash string `json:"nullifier_hash"`
	MerkleRoot    string `json:"merkle_root"`
	Proof         string `json:"proof"`
	ActionID      string `json:"action_id"`
	Signal        string `json:"signal"`
}

type ErrorResponse struct {
	Code      string `json:"code"`
	Detail    string `json:"detail"`
	Attribute string `json:"attribute,omitempty"`
}

var (
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)

	// nullifiers seen per action, mirroring the one-verification-per-human limit
	seenMu sync.Mutex
	seen   = map[string]bool{}
)

// Magic proof values let e2e tests choose the verifier's answer.
const (
	proofInvalid   = "0xinvalid"
	proofServerErr = "0xservererror"
	proofGarbage   = "0xgarbage"
	proofSlow      = "0xslow"
)

func main() {
	port := getEnv("PORT", defaultPort)
	limitReuse := getEnv("LIMIT_NULLIFIER_REUSE", "false") == "true"

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/api/v1/verify", func(w http.ResponseWriter, r *http.Request) {
		handleVerify(w, r, limitReuse)
	})

	log.Printf("Mock World ID verifier starting on port %s", port)
	log.Printf("Simulated latency: %dms, nullifier reuse limited: %t", latencyMs, limitReuse)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "worldid-verifier",
	})
}

func handleVerify(w http.ResponseWriter, r *http.Request, limitReuse bool) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)
	log.Printf("Incoming request: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST is supported", "")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON", "")
		return
	}

	switch {
	case req.ActionID == "":
		sendError(w, http.StatusBadRequest, "required", "This attribute is required.", "action_id")
		return
	case req.NullifierHash == "":
		sendError(w, http.StatusBadRequest, "required", "This attribute is required.", "nullifier_hash")
		return
	case req.Proof == proofInvalid:
		sendError(w, http.StatusBadRequest, "invalid_proof", "The provided proof is invalid and it cannot be verified. Please check all inputs and try again.", "")
		return
	case req.Proof == proofServerErr:
		sendError(w, http.StatusInternalServerError, "server_error", "Something went wrong.", "")
		return
	case req.Proof == proofGarbage:
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
		return
	case req.Proof == proofSlow:
		time.Sleep(30 * time.Second)
	}

	if limitReuse {
		key := req.ActionID + "/" + req.NullifierHash
		seenMu.Lock()
		dup := seen[key]
		seen[key] = true
		seenMu.Unlock()
		if dup {
			sendError(w, http.StatusBadRequest, "max_verifications_reached", "This person has already verified for this action.", "")
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":        true,
		"uses":           1,
		"action":         req.ActionID,
		"nullifier_hash": req.NullifierHash,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	})
	log.Printf("Verified nullifier %s for signal %s", req.NullifierHash, req.Signal)
}

func sendError(w http.ResponseWriter, status int, code, detail, attribute string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: code, Detail: detail, Attribute: attribute})
	log.Printf("Error response: %d - %s", status, code)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
