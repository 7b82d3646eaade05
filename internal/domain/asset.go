package domain

import "path"

// AssetRef identifies one stored blob. It is owned by exactly one row field.
type AssetRef struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// NewAssetRef returns a reference, or nil when key is empty.
func NewAssetRef(bucket, key string) *AssetRef {
	if key == "" {
		return nil
	}
	return &AssetRef{Bucket: bucket, Key: key}
}

// URLPath returns the path the asset is served from.
func (a *AssetRef) URLPath() string {
	if a == nil {
		return ""
	}
	return path.Join("/assets", a.Bucket, a.Key)
}

// Equal reports whether both refs point at the same blob. Two nil refs are equal.
func (a *AssetRef) Equal(other *AssetRef) bool {
	if a == nil || other == nil {
		return a == nil && other == nil
	}
	return a.Bucket == other.Bucket && a.Key == other.Key
}

// String returns bucket/key.
func (a *AssetRef) String() string {
	if a == nil {
		return "<nil>"
	}
	return a.Bucket + "/" + a.Key
}
