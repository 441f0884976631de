// Package anchor seals receipt batches. A seal archives the batch as a
// JSONL segment, computes its Merkle root, records an anchor receipt in the
// stream and, when a key is configured, issues an HS256 attestation token
// binding the root to the segment.
package anchor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/northstaraokeystone/trumpproof/pkg/archive"
	"github.com/northstaraokeystone/trumpproof/pkg/crypto"
	"github.com/northstaraokeystone/trumpproof/pkg/merkle"
	"github.com/northstaraokeystone/trumpproof/pkg/receipts"
	"github.com/northstaraokeystone/trumpproof/pkg/store"
)

// ReceiptType is the type of the receipt recording a seal.
const ReceiptType = "anchor"

// Issuer is the iss claim of every attestation.
const Issuer = "trumpproof/anchor"

var (
	// ErrInvalidAttestation is returned for tokens that fail signature or
	// claim validation.
	ErrInvalidAttestation = errors.New("anchor: invalid attestation")
	// ErrNotAnchor is returned when VerifySegment is given another receipt type.
	ErrNotAnchor = errors.New("anchor: not an anchor receipt")
)

// Claims binds a Merkle root to an archived segment.
type Claims struct {
	MerkleRoot   string `json:"merkle_root"`
	SegmentHash  string `json:"segment_hash"`
	ReceiptCount int    `json:"receipt_count"`
	TenantID     string `json:"tenant_id"`
	jwt.RegisteredClaims
}

// Seal is the outcome of sealing one batch.
type Seal struct {
	SegmentID   string
	SegmentHash string
	MerkleRoot  string
	Count       int
	Receipt     *receipts.Receipt
	Attestation string
}

// Sealer seals batches into an archive.
type Sealer struct {
	emitter *receipts.Emitter
	archive archive.Store
	key     []byte
	now     func() time.Time
	newID   func() string
	logger  *slog.Logger
}

// NewSealer creates a sealer. A nil archive computes and records segment
// hashes without persisting the segment.
func NewSealer(e *receipts.Emitter, a archive.Store) *Sealer {
	return &Sealer{
		emitter: e,
		archive: a,
		now:     time.Now,
		newID:   uuid.NewString,
		logger:  slog.Default().With("component", "anchor"),
	}
}

// WithKey enables attestation tokens signed with key.
func (s *Sealer) WithKey(key []byte) *Sealer {
	s.key = key
	return s
}

// WithClock overrides clock for testing.
func (s *Sealer) WithClock(clock func() time.Time) *Sealer {
	s.now = clock
	return s
}

// Tree builds the Merkle tree over a batch. Each leaf is the full receipt,
// envelope included.
func Tree(h *crypto.DualHasher, batch []*receipts.Receipt) (*merkle.Tree, error) {
	items := make([]any, len(batch))
	for i, r := range batch {
		items[i] = r.Map()
	}
	return merkle.BuildTree(h, items)
}

// Seal archives batch, emits its anchor receipt and signs the attestation.
func (s *Sealer) Seal(ctx context.Context, batch []*receipts.Receipt) (*Seal, error) {
	h := s.emitter.Hasher()

	tree, err := Tree(h, batch)
	if err != nil {
		return nil, fmt.Errorf("anchor: %w", err)
	}
	segment, err := archive.EncodeSegment(batch)
	if err != nil {
		return nil, err
	}

	segmentHash := h.Sum(segment)
	if s.archive != nil {
		stored, err := s.archive.Put(ctx, segment)
		if err != nil {
			return nil, fmt.Errorf("anchor: archive segment: %w", err)
		}
		segmentHash = stored
	}

	var firstTS, lastTS any
	if len(batch) > 0 {
		firstTS = batch[0].TS
		lastTS = batch[len(batch)-1].TS
	}

	seal := &Seal{
		SegmentID:   s.newID(),
		SegmentHash: segmentHash,
		MerkleRoot:  tree.Root,
		Count:       len(batch),
	}

	r, err := s.emitter.Emit(ctx, ReceiptType, map[string]any{
		"segment_id":    seal.SegmentID,
		"segment_hash":  segmentHash,
		"merkle_root":   tree.Root,
		"receipt_count": len(batch),
		"first_ts":      firstTS,
		"last_ts":       lastTS,
		"degraded_hash": h.Degraded(),
	})
	if err != nil {
		return nil, err
	}
	seal.Receipt = r

	if len(s.key) > 0 {
		token, err := s.sign(seal)
		if err != nil {
			return nil, err
		}
		seal.Attestation = token
	}

	s.logger.InfoContext(ctx, "segment sealed",
		"segment_id", seal.SegmentID,
		"receipts", seal.Count,
		"merkle_root", seal.MerkleRoot,
	)
	return seal, nil
}

func (s *Sealer) sign(seal *Seal) (string, error) {
	now := s.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		MerkleRoot:   seal.MerkleRoot,
		SegmentHash:  seal.SegmentHash,
		ReceiptCount: seal.Count,
		TenantID:     s.emitter.Tenant(),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  seal.SegmentID,
			Issuer:   Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("anchor: sign attestation: %w", err)
	}
	return signed, nil
}

// VerifyAttestation checks the token signature and issuer and returns its
// claims.
func VerifyAttestation(token string, key []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAttestation, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidAttestation
	}
	return claims, nil
}

// VerifySegment fetches the segment named by an anchor receipt and checks
// it end to end. A segment whose bytes or Merkle root disagree with the
// anchor fires the hash-mismatch StopRule through e.
func VerifySegment(ctx context.Context, e *receipts.Emitter, a archive.Store, anchorReceipt *receipts.Receipt) error {
	if anchorReceipt.Type != ReceiptType {
		return fmt.Errorf("%w: %s", ErrNotAnchor, anchorReceipt.Type)
	}
	segmentHash := anchorReceipt.String("segment_hash", "")
	data, err := a.Get(ctx, segmentHash)
	if err != nil {
		return fmt.Errorf("anchor: fetch segment: %w", err)
	}

	h := e.Hasher()
	if actual := h.Sum(data); actual != segmentHash {
		return e.StopHashMismatch(ctx, segmentHash, actual)
	}

	batch, err := store.ReadJSONL(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("anchor: decode segment: %w", err)
	}
	return VerifyBatch(ctx, e, batch, anchorReceipt)
}

// VerifyBatch checks batch against the root and count recorded in an anchor
// receipt.
func VerifyBatch(ctx context.Context, e *receipts.Emitter, batch []*receipts.Receipt, anchorReceipt *receipts.Receipt) error {
	tree, err := Tree(e.Hasher(), batch)
	if err != nil {
		return fmt.Errorf("anchor: %w", err)
	}
	expected := anchorReceipt.String("merkle_root", "")
	if tree.Root != expected {
		return e.StopHashMismatch(ctx, expected, tree.Root)
	}
	if want := int(anchorReceipt.Number("receipt_count")); want != len(batch) {
		return fmt.Errorf("anchor: segment holds %d receipts, anchor records %d", len(batch), want)
	}
	return nil
}
