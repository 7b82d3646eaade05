package assets

import (
	"path"
	"strings"

	"github.com/colorbook/colorbook-server/internal/errors"
	"github.com/colorbook/colorbook-server/internal/media/transcode"
	"github.com/colorbook/colorbook-server/internal/normalize"
)

// ErrInvalidFileName is returned when a file name slugifies to nothing.
var ErrInvalidFileName = errors.Validation("file name has no usable base name")

// ResolveKey derives a URL-safe storage key from a user-supplied file name.
// The base name is slugified and the original extension (lowercased,
// alphanumerics only) is kept, or replaced by the derived extension when
// asDerived is set. The result depends only on the inputs.
//
//	ResolveKey("My Photo!!.PNG", false) -> "my-photo.png"
//	ResolveKey("My Photo!!.PNG", true)  -> "my-photo.opt.jpg"
func ResolveKey(fileName string, asDerived bool) (string, error) {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	ext := path.Ext(base)
	stem := normalize.Slugify(strings.TrimSuffix(base, ext))
	if stem == "" {
		return "", ErrInvalidFileName.WithDetails(map[string]string{"file_name": fileName})
	}

	if asDerived {
		return stem + transcode.DerivedExtension, nil
	}
	if ext = sanitizeExt(ext); ext == "" {
		return stem, nil
	}
	return stem + "." + ext, nil
}

// JoinKey prefixes key with a slash-separated namespace. An empty prefix
// returns key unchanged.
func JoinKey(prefix, key string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func sanitizeExt(ext string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return -1
		}
	}, ext)
}
