// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
//
// Every identity in the pass service is an ed25519 public key rendered as base58,
// the same encoding the asset registry uses for groups and assets.
package domain

import (
	"github.com/blocto/solana-go-sdk/common"
	"github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"

	dErrors "memberpass/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing a PrincipalID where an AssetID is expected.
type (
	PrincipalID  common.PublicKey
	AssetGroupID common.PublicKey
	AssetID      common.PublicKey
)

// Parse functions - use at trust boundaries (handlers, CLI flags, config).

func ParsePrincipalID(s string) (PrincipalID, error) {
	key, err := parseKey(s, "principal")
	return PrincipalID(key), err
}

func ParseAssetGroupID(s string) (AssetGroupID, error) {
	key, err := parseKey(s, "asset group")
	return AssetGroupID(key), err
}

func ParseAssetID(s string) (AssetID, error) {
	key, err := parseKey(s, "asset")
	return AssetID(key), err
}

// Generators - used by the asset registry adapters and key tooling.

func NewAssetGroupID() AssetGroupID { return AssetGroupID(types.NewAccount().PublicKey) }
func NewAssetID() AssetID           { return AssetID(types.NewAccount().PublicKey) }

// String methods - base58, as shown to users and stored in records.

func (id PrincipalID) String() string  { return common.PublicKey(id).ToBase58() }
func (id AssetGroupID) String() string { return common.PublicKey(id).ToBase58() }
func (id AssetID) String() string      { return common.PublicKey(id).ToBase58() }

// IsNil checks - the zero key marks an unset identity (e.g. an unregistered asset group).

func (id PrincipalID) IsNil() bool  { return id == PrincipalID{} }
func (id AssetGroupID) IsNil() bool { return id == AssetGroupID{} }
func (id AssetID) IsNil() bool      { return id == AssetID{} }

// Text marshalling keeps JSON documents readable and lets IDs act as map keys.

func (id PrincipalID) MarshalText() ([]byte, error)  { return marshalKey(common.PublicKey(id)) }
func (id AssetGroupID) MarshalText() ([]byte, error) { return marshalKey(common.PublicKey(id)) }
func (id AssetID) MarshalText() ([]byte, error)      { return marshalKey(common.PublicKey(id)) }

func (id *PrincipalID) UnmarshalText(b []byte) error {
	key, err := unmarshalKey(b, "principal")
	*id = PrincipalID(key)
	return err
}

func (id *AssetGroupID) UnmarshalText(b []byte) error {
	key, err := unmarshalKey(b, "asset group")
	*id = AssetGroupID(key)
	return err
}

func (id *AssetID) UnmarshalText(b []byte) error {
	key, err := unmarshalKey(b, "asset")
	*id = AssetID(key)
	return err
}

// parseKey is the shared validation logic. The all-zero key is rejected here;
// it is only ever produced internally to mean "unset".
func parseKey(s, label string) (common.PublicKey, error) {
	if s == "" {
		return common.PublicKey{}, dErrors.New(dErrors.CodeInvalidInput, label+" ID cannot be empty")
	}
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != common.PublicKeyLength {
		return common.PublicKey{}, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" ID format")
	}
	key := common.PublicKeyFromBytes(raw)
	if key == (common.PublicKey{}) {
		return common.PublicKey{}, dErrors.New(dErrors.CodeInvalidInput, label+" ID cannot be the zero key")
	}
	return key, nil
}

func marshalKey(key common.PublicKey) ([]byte, error) {
	if key == (common.PublicKey{}) {
		return []byte{}, nil
	}
	return []byte(key.ToBase58()), nil
}

func unmarshalKey(b []byte, label string) (common.PublicKey, error) {
	if len(b) == 0 {
		return common.PublicKey{}, nil
	}
	return parseKey(string(b), label)
}
