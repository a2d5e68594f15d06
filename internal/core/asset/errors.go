package asset

import "errors"

var (
	ErrUnknownAsset   = errors.New("unknown asset")
	ErrInvalidCatalog = errors.New("invalid asset catalog")
)
