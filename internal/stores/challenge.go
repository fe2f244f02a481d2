package stores

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	challengeRecordVersionV1 = 1
	defaultChallengePrefix   = "tfa"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeMismatch = errors.New("challenge attempt id or code mismatch")
	// ErrChallengeBurned is a mismatch that exhausted the attempt budget; the
	// challenge no longer exists.
	ErrChallengeBurned  = errors.New("challenge attempts exhausted")
	ErrChallengeBackend = errors.New("challenge backend unavailable")
)

// redeemChallengeLua atomically performs GET→compare→DEL (or attempt rewrite).
// KEYS[1] = challenge key
// ARGV[1] = pair digest of the presented attempt id and code (32 bytes)
// ARGV[2] = max attempts (0 = unlimited)
//
// The record layout is version(1) attempts(2) issuedAt(8) expiresAt(8)
// digest(32) followed by variable-length fields Lua never reads.
//
// Returns 1 on success, or error string "not_found", "mismatch", "burned".
var redeemChallengeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

if string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local stored = string.sub(data, 20, 51)
if stored == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return 1
end

local maxAttempts = tonumber(ARGV[2])
local attempts = string.byte(data, 2) * 256 + string.byte(data, 3) + 1
if maxAttempts > 0 and attempts >= maxAttempts then
  redis.call('DEL', KEYS[1])
  return {err='burned'}
end

local ttlMs = redis.call('PTTL', KEYS[1])
if ttlMs <= 0 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end
local updated = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256) % 256, attempts % 256) .. string.sub(data, 4)
redis.call('SET', KEYS[1], updated, 'PX', ttlMs)
return {err='mismatch'}
`)

// ChallengeRecord is the stored form of one pending 2FA step.
type ChallengeRecord struct {
	AttemptID string
	Code      string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Attempts  uint16
}

// ChallengeStore keeps one challenge per email in Redis. The key TTL is the
// challenge lifetime.
type ChallengeStore struct {
	redis       redis.UniversalClient
	prefix      string
	maxAttempts int
}

func NewChallengeStore(redisClient redis.UniversalClient, prefix string, maxAttempts int) *ChallengeStore {
	if prefix == "" {
		prefix = defaultChallengePrefix
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	return &ChallengeStore{
		redis:       redisClient,
		prefix:      prefix,
		maxAttempts: maxAttempts,
	}
}

func (s *ChallengeStore) key(email string) string {
	return s.prefix + ":" + email
}

// Issue stores record for email, replacing any earlier challenge.
func (s *ChallengeStore) Issue(ctx context.Context, email string, record *ChallengeRecord) error {
	ttl := record.ExpiresAt.Sub(record.IssuedAt)
	if ttl <= 0 {
		return errors.New("challenge ttl must be positive")
	}

	encoded, err := encodeChallengeRecord(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(email), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

// Redeem consumes the challenge when both attemptID and code match.
func (s *ChallengeStore) Redeem(ctx context.Context, email, attemptID, code string) error {
	digest := pairDigest(attemptID, code)

	_, err := redeemChallengeLua.Run(ctx, s.redis,
		[]string{s.key(email)},
		string(digest[:]),
		s.maxAttempts,
	).Result()
	if err == nil {
		return nil
	}

	switch err.Error() {
	case "not_found":
		return ErrChallengeNotFound
	case "mismatch":
		return ErrChallengeMismatch
	case "burned":
		return ErrChallengeBurned
	default:
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
}

// Peek returns the active challenge without consuming it.
func (s *ChallengeStore) Peek(ctx context.Context, email string) (*ChallengeRecord, error) {
	data, err := s.redis.Get(ctx, s.key(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}

	record, err := decodeChallengeRecord(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return record, nil
}

// Discard deletes any challenge for email. Deleting nothing is not an error.
func (s *ChallengeStore) Discard(ctx context.Context, email string) error {
	if err := s.redis.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeBackend, err)
	}
	return nil
}

func pairDigest(attemptID, code string) [32]byte {
	h := sha256.New()
	h.Write([]byte(attemptID))
	h.Write([]byte{0})
	h.Write([]byte(code))

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func encodeChallengeRecord(record *ChallengeRecord) ([]byte, error) {
	if len(record.AttemptID) > 255 || len(record.Code) > 255 {
		return nil, errors.New("challenge field too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersionV1)
	_ = binary.Write(&buf, binary.BigEndian, record.Attempts)
	_ = binary.Write(&buf, binary.BigEndian, record.IssuedAt.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, record.ExpiresAt.UnixMilli())

	digest := pairDigest(record.AttemptID, record.Code)
	buf.Write(digest[:])

	buf.WriteByte(byte(len(record.AttemptID)))
	buf.WriteString(record.AttemptID)
	buf.WriteByte(byte(len(record.Code)))
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeChallengeRecord(data []byte) (*ChallengeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersionV1 {
		return nil, errors.New("invalid challenge record version")
	}

	record := &ChallengeRecord{}
	var issuedMs, expiresMs int64
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &issuedMs); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresMs); err != nil {
		return nil, err
	}
	record.IssuedAt = time.UnixMilli(issuedMs)
	record.ExpiresAt = time.UnixMilli(expiresMs)

	if _, err := reader.Seek(sha256.Size, io.SeekCurrent); err != nil {
		return nil, err
	}

	if record.AttemptID, err = readShortString(reader); err != nil {
		return nil, err
	}
	if record.Code, err = readShortString(reader); err != nil {
		return nil, err
	}
	return record, nil
}

func readShortString(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
