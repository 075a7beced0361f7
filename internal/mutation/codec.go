package mutation

import (
	"encoding/json"
	"fmt"
)

// Encode serializes an engine mutation for the WAL. The kind name is stored
// next to the payload so Decode knows which type to build.
func Encode(m EngineMutation) (string, []byte, error) {
	if m == nil {
		return "", nil, fmt.Errorf("failed to encode mutation: nil mutation")
	}
	if _, ok := decoders[m.Kind()]; !ok {
		return "", nil, fmt.Errorf("failed to encode mutation: unsupported kind %s", m.Kind())
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s: %w", m.Kind(), err)
	}
	return m.Kind().String(), payload, nil
}

// Decode is the inverse of Encode.
func Decode(kind string, payload []byte) (EngineMutation, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	decode, ok := decoders[k]
	if !ok {
		return nil, fmt.Errorf("failed to decode mutation: %s is not an engine mutation", k)
	}
	m, err := decode(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", k, err)
	}
	return m, nil
}

var decoders = map[Kind]func([]byte) (EngineMutation, error){
	KindCreateCatalog:        decodeAs[CreateCatalog],
	KindDuplicateCatalog:     decodeAs[DuplicateCatalog],
	KindMakeCatalogAlive:     decodeAs[MakeCatalogAlive],
	KindModifyCatalogName:    decodeAs[ModifyCatalogName],
	KindModifyCatalogSchema:  decodeAs[ModifyCatalogSchema],
	KindRemoveCatalog:        decodeAs[RemoveCatalog],
	KindRestoreCatalog:       decodeAs[RestoreCatalog],
	KindSetCatalogMutability: decodeAs[SetCatalogMutability],
	KindSetCatalogState:      decodeAs[SetCatalogState],
}

func decodeAs[M EngineMutation](payload []byte) (EngineMutation, error) {
	var m M
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeTransaction serializes the WAL wrapper of a transaction.
func EncodeTransaction(m TransactionMutation) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transaction mutation: %w", err)
	}
	return payload, nil
}

// DecodeTransaction is the inverse of EncodeTransaction.
func DecodeTransaction(payload []byte) (TransactionMutation, error) {
	var m TransactionMutation
	if err := json.Unmarshal(payload, &m); err != nil {
		return TransactionMutation{}, fmt.Errorf("failed to decode transaction mutation: %w", err)
	}
	return m, nil
}
