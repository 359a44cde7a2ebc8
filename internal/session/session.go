// Package session implements the vault session state machine. It is the
// single owner of the master key, which lives in locked, guarded memory from
// a successful primary unlock until the session locks, and is wiped then.
package session

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vaultx/internal/crypto"
	"vaultx/internal/domain"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"
)

// SecureStore is OS-protected local storage. Load returns nil, nil when the
// key is absent.
type SecureStore interface {
	Save(key string, data []byte) error
	Load(key string) ([]byte, error)
	Delete(key string) error
}

const recordKeyPrefix = "vaultx.credential."

func recordKey(userID string) string {
	return recordKeyPrefix + userID
}

type Config struct {
	KDF         crypto.KDFParams
	IdleTimeout time.Duration
}

// Lease identifies one unlocked period and the collection it serves. A lease
// goes stale as soon as the session locks, signs out or changes key.
type Lease struct {
	Collection domain.Collection
	generation uint64
}

type Session struct {
	store       SecureStore
	kdf         crypto.KDFParams
	idleTimeout time.Duration
	log         zerolog.Logger

	// unlockMu serializes unlock, setup and rekey so two derivations never
	// race into two live keys.
	unlockMu sync.Mutex

	mu         sync.RWMutex
	state      State
	user       *domain.SessionUser
	record     *domain.CredentialRecord
	masterKey  *memguard.LockedBuffer
	decoyKey   *memguard.LockedBuffer
	generation uint64
	idleTimer  *time.Timer

	lastActivity atomic.Int64
}

func New(store SecureStore, cfg Config, logger zerolog.Logger) (*Session, error) {
	if cfg.KDF.Iterations < crypto.MinIterations {
		return nil, fmt.Errorf("%w: %d", crypto.ErrWeakKDF, cfg.KDF.Iterations)
	}

	return &Session{
		store:       store,
		kdf:         cfg.KDF,
		idleTimeout: cfg.IdleTimeout,
		log:         logger.With().Str("component", "session").Logger(),
	}, nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// User returns the verified identity, or nil when unauthenticated.
func (s *Session) User() *domain.SessionUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// HasMasterKey reports whether a master key is currently held.
func (s *Session) HasMasterKey() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.masterKey != nil
}

// BiometricEnabled reports the biometric flag of the unlocked collection, or
// of the real collection while locked.
func (s *Session) BiometricEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.record == nil {
		return false
	}
	if s.state == DecoyUnlocked {
		return s.record.Biometric(domain.CollectionDecoy)
	}
	return s.record.Biometric(domain.CollectionReal)
}

// Authenticate records an identity verified by the identity provider. If a
// completed credential record exists for it the session moves straight on to
// VAULT_LOCKED.
func (s *Session) Authenticate(user *domain.SessionUser) (State, error) {
	if user == nil || user.ID == "" {
		return s.State(), fmt.Errorf("%w: missing session user", ErrStateViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Unauthenticated {
		return s.state, ErrStateViolation
	}

	record, err := s.loadRecord(user.ID)
	if err != nil {
		return s.state, err
	}

	u := *user
	s.user = &u
	s.transition(IdentityVerified)

	if record != nil && record.SetupComplete {
		s.record = record
		s.transition(VaultLocked)
	}
	return s.state, nil
}

// Setup creates the credential record from a primary and a duress credential
// and moves to VAULT_LOCKED.
func (s *Session) Setup(primary, duress []byte) error {
	if err := crypto.ValidateCredential(primary); err != nil {
		return err
	}
	if err := crypto.ValidateCredential(duress); err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(primary, duress) == 1 {
		return ErrCredentialsMustDiffer
	}

	if !s.unlockMu.TryLock() {
		return ErrUnlockInProgress
	}
	defer s.unlockMu.Unlock()

	s.mu.RLock()
	state, user := s.state, s.user
	s.mu.RUnlock()

	switch state {
	case IdentityVerified:
	case VaultLocked, VaultUnlocked, DecoyUnlocked:
		return ErrAlreadySetUp
	default:
		return ErrStateViolation
	}

	record, err := s.newRecord(user.ID, primary, duress)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != IdentityVerified || s.user == nil || s.user.ID != user.ID {
		return ErrStateViolation
	}
	if err := s.saveRecord(record); err != nil {
		return err
	}

	s.record = record
	s.transition(VaultLocked)
	return nil
}

func (s *Session) newRecord(userID string, primary, duress []byte) (*domain.CredentialRecord, error) {
	var salts [4][]byte
	for i := range salts {
		salt, err := crypto.GenerateSalt()
		if err != nil {
			return nil, err
		}
		salts[i] = salt
	}

	primaryHash, err := s.kdf.HashCredential(primary, salts[0])
	if err != nil {
		return nil, fmt.Errorf("failed to hash primary credential: %w", err)
	}
	duressHash, err := s.kdf.HashCredential(duress, salts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to hash duress credential: %w", err)
	}

	now := time.Now()
	return &domain.CredentialRecord{
		UserID:        userID,
		PrimaryHash:   primaryHash,
		PrimarySalt:   salts[0],
		DuressHash:    duressHash,
		DuressSalt:    salts[1],
		MasterKeySalt: salts[2],
		DecoyKeySalt:  salts[3],
		KDFIterations: s.kdf.Iterations,
		SetupComplete: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type unlockOutcome struct {
	state      State
	collection domain.Collection
}

// unlockOutcomes is indexed by primaryMatch<<1 | duressMatch. Every entry
// derives exactly one key, so real, decoy and failed attempts cost the same.
// A failed attempt's key is derived from the wrong credential and destroyed.
var unlockOutcomes = [4]unlockOutcome{
	{VaultLocked, domain.CollectionReal},
	{DecoyUnlocked, domain.CollectionDecoy},
	{VaultUnlocked, domain.CollectionReal},
	{VaultLocked, domain.CollectionReal},
}

// deriveKey derives the key protecting collection c.
func deriveKey(p crypto.KDFParams, c domain.Collection, credential, salt []byte) ([]byte, error) {
	if c == domain.CollectionDecoy {
		return p.DeriveDecoyKey(credential, salt)
	}
	return p.DeriveMasterKey(credential, salt)
}

// Unlock checks credential against both commitments and unlocks either the
// real vault (master key derived and held) or the decoy vault (master key
// absent). Both succeed with a nil error; the caller cannot tell them apart.
func (s *Session) Unlock(credential []byte) error {
	if !s.unlockMu.TryLock() {
		return ErrUnlockInProgress
	}
	defer s.unlockMu.Unlock()

	s.mu.RLock()
	state, record := s.state, s.record
	s.mu.RUnlock()

	if state != VaultLocked || record == nil {
		return ErrStateViolation
	}

	kdf := crypto.KDFParams{Iterations: record.KDFIterations}
	primary := kdf.VerifyCredential(credential, record.PrimarySalt, record.PrimaryHash)
	duress := kdf.VerifyCredential(credential, record.DuressSalt, record.DuressHash)
	outcome := unlockOutcomes[b2i(primary)<<1|b2i(duress)]

	key, err := deriveKey(kdf, outcome.collection, credential, record.KeySalt(outcome.collection))
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	buf := memguard.NewBufferFromBytes(key)
	buf.Freeze()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != VaultLocked || s.record != record {
		buf.Destroy()
		return ErrStateViolation
	}

	switch outcome.state {
	case VaultUnlocked:
		s.masterKey = buf
	case DecoyUnlocked:
		s.decoyKey = buf
	default:
		buf.Destroy()
		s.log.Info().Msg("unlock attempt rejected")
		return ErrAuthenticationFailed
	}

	s.generation++
	s.state = outcome.state
	s.armIdleTimer()
	s.log.Info().Msg("session unlocked")
	return nil
}

// Lock wipes any held key and returns to VAULT_LOCKED. It is a no-op unless
// the session is unlocked.
func (s *Session) Lock(reason LockReason) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.unlocked() {
		return
	}
	s.wipeKeys()
	s.state = VaultLocked
	s.log.Info().Str("reason", string(reason)).Msg("session locked")
}

// SignOut wipes any held key, forgets the cached record and identity, and
// returns to UNAUTHENTICATED. The persisted record is kept.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wipeKeys()
	s.record = nil
	s.user = nil
	s.transition(Unauthenticated)
}

// WithKey runs fn with the key of the live unlocked period: the master key in
// VAULT_UNLOCKED, the decoy key in DECOY_UNLOCKED. The key is borrowed: fn must
// not retain it or call back into the session. Locking waits for fn.
func (s *Session) WithKey(fn func(key []byte, lease Lease) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	buf, lease, err := s.activeKey()
	if err != nil {
		return err
	}
	s.touch()
	return fn(buf.Bytes(), lease)
}

// Current returns the lease of the live unlocked period.
func (s *Session) Current() (Lease, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, lease, err := s.activeKey()
	if err == nil {
		s.touch()
	}
	return lease, err
}

// Hold runs fn only while lease still describes the live unlocked period.
// Locking waits for fn. fn must not call back into the session.
func (s *Session) Hold(lease Lease, fn func() error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, current, err := s.activeKey()
	if err != nil || current != lease {
		return ErrStateViolation
	}
	s.touch()
	return fn()
}

// Rekey replaces the credential that opened the live session and the key it
// derives: the primary credential and master key in the real vault, the
// duress credential and decoy key in the decoy vault. Both run the same
// checks and derivations. rewrap must move every wrapped file key of the
// collection from oldKey to newKey and persist the result; it is called again
// with the keys swapped if the new record cannot be saved.
func (s *Session) Rekey(current, next []byte, rewrap func(c domain.Collection, oldKey, newKey []byte) error) error {
	if err := crypto.ValidateCredential(next); err != nil {
		return err
	}
	if !s.unlockMu.TryLock() {
		return ErrUnlockInProgress
	}
	defer s.unlockMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	held, lease, err := s.activeKey()
	if err != nil {
		return err
	}

	record := s.record
	kdf := crypto.KDFParams{Iterations: record.KDFIterations}
	ownSalt, ownHash, otherSalt, otherHash := record.Commitments(lease.Collection)
	if !kdf.VerifyCredential(current, ownSalt, ownHash) {
		return ErrAuthenticationFailed
	}
	if kdf.VerifyCredential(next, otherSalt, otherHash) {
		return ErrCredentialsMustDiffer
	}

	hashSalt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	keySalt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := kdf.HashCredential(next, hashSalt)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}
	newKey, err := deriveKey(kdf, lease.Collection, next, keySalt)
	if err != nil {
		return fmt.Errorf("failed to derive key: %w", err)
	}
	buf := memguard.NewBufferFromBytes(newKey)
	buf.Freeze()

	if err := rewrap(lease.Collection, held.Bytes(), buf.Bytes()); err != nil {
		buf.Destroy()
		return fmt.Errorf("failed to rewrap file keys: %w", err)
	}

	updated := record.Clone()
	updated.SetCredential(lease.Collection, hashSalt, hash, keySalt)
	updated.UpdatedAt = time.Now()

	if err := s.saveRecord(updated); err != nil {
		if rbErr := rewrap(lease.Collection, buf.Bytes(), held.Bytes()); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("failed to roll back file key rewrap")
		}
		buf.Destroy()
		return err
	}

	held.Destroy()
	if lease.Collection == domain.CollectionDecoy {
		s.decoyKey = buf
	} else {
		s.masterKey = buf
	}
	s.record = updated
	s.generation++
	s.armIdleTimer()
	s.log.Info().Msg("credential changed")
	return nil
}

// ChangeDuress replaces the duress credential. primary must verify against
// the credential that opened lease's collection. In the decoy vault the same
// checks and hashing run but nothing is persisted, as a duress credential set
// from inside the decoy has no vault behind it.
func (s *Session) ChangeDuress(lease Lease, primary, next []byte) error {
	if err := crypto.ValidateCredential(next); err != nil {
		return err
	}
	if !s.unlockMu.TryLock() {
		return ErrUnlockInProgress
	}
	defer s.unlockMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, current, err := s.activeKey(); err != nil || current != lease {
		return ErrStateViolation
	}

	record := s.record
	kdf := crypto.KDFParams{Iterations: record.KDFIterations}
	ownSalt, ownHash, _, _ := record.Commitments(lease.Collection)
	if !kdf.VerifyCredential(primary, ownSalt, ownHash) {
		return ErrAuthenticationFailed
	}
	if kdf.VerifyCredential(next, ownSalt, ownHash) {
		return ErrCredentialsMustDiffer
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	keySalt, err := crypto.GenerateSalt()
	if err != nil {
		return err
	}
	hash, err := kdf.HashCredential(next, salt)
	if err != nil {
		return fmt.Errorf("failed to hash credential: %w", err)
	}

	if lease.Collection == domain.CollectionReal {
		updated := record.Clone()
		updated.SetCredential(domain.CollectionDecoy, salt, hash, keySalt)
		updated.UpdatedAt = time.Now()
		if err := s.saveRecord(updated); err != nil {
			return err
		}
		s.record = updated
	}

	s.log.Info().Msg("duress credential changed")
	return nil
}

// SetBiometric persists the biometric flag of the unlocked collection.
func (s *Session) SetBiometric(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, lease, err := s.activeKey()
	if err != nil {
		return err
	}

	updated := s.record.Clone()
	updated.SetBiometric(lease.Collection, enabled)
	updated.UpdatedAt = time.Now()
	if err := s.saveRecord(updated); err != nil {
		return err
	}
	s.record = updated
	return nil
}

// DeleteRecord removes the persisted credential record and signs out. From
// the decoy vault it signs out the same way but keeps the record, which also
// protects the real vault.
func (s *Session) DeleteRecord(lease Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, current, err := s.activeKey(); err != nil || current != lease {
		return ErrStateViolation
	}
	if lease.Collection == domain.CollectionReal {
		if err := s.store.Delete(recordKey(s.user.ID)); err != nil {
			return fmt.Errorf("failed to delete credential record: %w", err)
		}
	}

	s.wipeKeys()
	s.record = nil
	s.user = nil
	s.transition(Unauthenticated)
	return nil
}

// activeKey returns the held key and lease. Caller holds mu.
func (s *Session) activeKey() (*memguard.LockedBuffer, Lease, error) {
	switch s.state {
	case VaultUnlocked:
		return s.masterKey, Lease{Collection: domain.CollectionReal, generation: s.generation}, nil
	case DecoyUnlocked:
		return s.decoyKey, Lease{Collection: domain.CollectionDecoy, generation: s.generation}, nil
	default:
		return nil, Lease{}, ErrStateViolation
	}
}

// wipeKeys destroys every held key. Destroy overwrites the guarded pages
// before releasing them. Caller holds mu.
func (s *Session) wipeKeys() {
	if s.masterKey != nil {
		s.masterKey.Destroy()
		s.masterKey = nil
	}
	if s.decoyKey != nil {
		s.decoyKey.Destroy()
		s.decoyKey = nil
	}
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	s.generation++
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// armIdleTimer (re)starts the idle watch for the current generation. Caller
// holds mu.
func (s *Session) armIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
	if s.idleTimeout <= 0 {
		return
	}
	s.touch()
	gen := s.generation
	s.idleTimer = time.AfterFunc(s.idleTimeout, func() { s.checkIdle(gen) })
}

func (s *Session) checkIdle(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.unlocked() || s.generation != gen {
		return
	}

	idle := time.Since(time.Unix(0, s.lastActivity.Load()))
	if idle < s.idleTimeout {
		s.idleTimer = time.AfterFunc(s.idleTimeout-idle, func() { s.checkIdle(gen) })
		return
	}

	s.wipeKeys()
	s.state = VaultLocked
	s.log.Info().Str("reason", string(LockIdle)).Msg("session locked")
}

// transition changes state and logs it. Unlocked states are logged under one
// name so logs never reveal which vault was open. Caller holds mu.
func (s *Session) transition(to State) {
	from := s.state
	s.state = to
	s.log.Info().Str("from", logName(from)).Str("to", logName(to)).Msg("session state changed")
}

func logName(st State) string {
	if st.unlocked() {
		return "UNLOCKED"
	}
	return st.String()
}

func (s *Session) loadRecord(userID string) (*domain.CredentialRecord, error) {
	data, err := s.store.Load(recordKey(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load credential record: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	var record domain.CredentialRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return &record, nil
}

func (s *Session) saveRecord(record *domain.CredentialRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode credential record: %w", err)
	}
	if err := s.store.Save(recordKey(record.UserID), data); err != nil {
		return fmt.Errorf("failed to save credential record: %w", err)
	}
	return nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}
