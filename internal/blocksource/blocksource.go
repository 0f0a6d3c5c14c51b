// Package blocksource defines the external interfaces of spec.md §6:
// the inbound {header_bytes, nbits} plus found-share-callback
// contract, and an HTTP implementation of it. Implementing the
// stratum pool wire protocol itself is out of scope (Non-goal); this
// package only ships the contract the core consumes plus a plain
// HTTP polling client fulfilling it, the same role
// cmd/dilithium-cpu-gpu-miner/network.go's NodeClient plays for the
// teacher's SHA-256 miner.
package blocksource

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Share is the outbound report spec.md §6 specifies: {internal_id,
// merkle_root, previous_hash, nonce, nonce_difficulty}.
type Share struct {
	InternalID      string  `json:"internal_id"`
	MerkleRoot      string  `json:"merkle_root"`
	PreviousHash    string  `json:"previous_hash"`
	Nonce           string  `json:"nonce"` // decimal big.Int string
	NonceDifficulty float64 `json:"nonce_difficulty"`
}

// Block is the inbound unit of work: the 1024-bit-hash input bytes,
// the block's target encoding, and the callback to invoke for every
// qualifying share the core finds against this specific block. A nil
// OnShare is valid input (it is spec.md §7 kind (v), "callback not
// set") and must be handled by dropping the share, not by panicking.
type Block struct {
	HeaderBytes []byte
	NBits       uint32
	OnShare     func(Share)
}

// Source is the block source collaborator contract: it hands out the
// next unit of work, blocking until one is available or ctx is
// canceled.
type Source interface {
	Next(ctx context.Context) (*Block, error)
}

type apiResponse struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

type workTemplate struct {
	HeaderBytes string `json:"header_bytes"` // hex-encoded
	NBits       uint32 `json:"nbits"`
	Height      int64  `json:"height"`
}

// HTTPSource polls a node's /work endpoint for new block templates
// and posts confirmed shares to /share, the same baseURL-plus-
// net/http.Client shape as NodeClient in
// cmd/dilithium-cpu-gpu-miner/network.go, generalised from that
// client's difficulty/reward block template to spec.md §6's
// {header_bytes, nbits} shape.
type HTTPSource struct {
	baseURL      string
	client       *http.Client
	pollInterval time.Duration

	lastHeight int64
}

// NewHTTPSource builds an HTTPSource polling baseURL at the given
// interval for new work.
func NewHTTPSource(baseURL string, pollInterval time.Duration) *HTTPSource {
	return &HTTPSource{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 10 * time.Second},
		pollInterval: pollInterval,
		lastHeight:   -1,
	}
}

// Next polls until a block with a new height arrives or ctx is
// canceled.
func (s *HTTPSource) Next(ctx context.Context) (*Block, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		block, height, err := s.fetchWork()
		if err == nil && height != s.lastHeight {
			s.lastHeight = height
			block.OnShare = func(share Share) { s.reportShare(share) }
			return block, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *HTTPSource) fetchWork() (*Block, int64, error) {
	resp, err := s.client.Get(s.baseURL + "/work")
	if err != nil {
		return nil, 0, fmt.Errorf("blocksource: cannot reach %s: %w", s.baseURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("blocksource: reading response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, 0, fmt.Errorf("blocksource: invalid response: %s", string(body))
	}
	if !apiResp.Success {
		return nil, 0, fmt.Errorf("blocksource: node error: %s", apiResp.Message)
	}

	raw, err := json.Marshal(apiResp.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("blocksource: re-marshalling data: %w", err)
	}
	var tmpl workTemplate
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, 0, fmt.Errorf("blocksource: decoding work template: %w", err)
	}

	header, err := hex.DecodeString(tmpl.HeaderBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("blocksource: decoding header_bytes: %w", err)
	}

	return &Block{HeaderBytes: header, NBits: tmpl.NBits}, tmpl.Height, nil
}

func (s *HTTPSource) reportShare(share Share) {
	data, err := json.Marshal(share)
	if err != nil {
		fmt.Printf("[!] blocksource: marshalling share: %v\n", err)
		return
	}

	resp, err := s.client.Post(s.baseURL+"/share", "application/json", bytes.NewReader(data))
	if err != nil {
		fmt.Printf("[!] blocksource: submitting share: %v\n", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Printf("[!] blocksource: reading share response: %v\n", err)
		return
	}
	var apiResp apiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		fmt.Printf("[!] blocksource: invalid share response: %s\n", string(body))
		return
	}
	if !apiResp.Success {
		fmt.Printf("[!] blocksource: share rejected: %s\n", apiResp.Message)
	}
}
