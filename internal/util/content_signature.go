package util

import "bytes"

// SignatureResult : результат сверки первых байт объекта с заявленным типом
type SignatureResult int

const (
	SignatureMatch SignatureResult = iota
	SignatureMismatch
	SignatureUnknown
)

func (r SignatureResult) String() string {
	switch r {
	case SignatureMatch:
		return "match"
	case SignatureMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

type signature struct {
	offset int
	magic  []byte
}

// Таблица сигнатур по заявленному типу. Для типа может быть
// несколько вариантов (например little/big endian у tiff).
var signatureTable = map[string][]signature{
	"image/jpeg": {
		{0, []byte{0xFF, 0xD8, 0xFF}},
	},
	"image/png": {
		{0, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	},
	"image/gif": {
		{0, []byte("GIF87a")},
		{0, []byte("GIF89a")},
	},
	"image/webp": {
		// RIFF....WEBP, байты 4-7 содержат размер и не проверяются
		{0, []byte("RIFF")},
	},
	"application/pdf": {
		{0, []byte("%PDF-")},
	},
	"application/zip": {
		{0, []byte{0x50, 0x4B, 0x03, 0x04}},
		{0, []byte{0x50, 0x4B, 0x05, 0x06}},
	},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {
		{0, []byte{0x50, 0x4B, 0x03, 0x04}},
	},
}

// SignaturePrefixSize : сколько байт достаточно прочитать из staging-объекта
// для сверки с любой сигнатурой из таблицы
const SignaturePrefixSize = 16

// ValidateSignature : сверяет первые байты объекта с заявленным типом.
// Тип без зарегистрированной сигнатуры даёт SignatureUnknown и пропускается
// политикой выше (фильтр разрешённых типов срабатывает при выдаче гранта).
// SignatureMismatch терминален: промоция обязана завершиться отказом.
func ValidateSignature(prefix []byte, declaredContentType string) SignatureResult {
	candidates, ok := signatureTable[declaredContentType]
	if !ok {
		return SignatureUnknown
	}

	for _, candidate := range candidates {
		end := candidate.offset + len(candidate.magic)
		if len(prefix) < end {
			continue
		}
		if bytes.Equal(prefix[candidate.offset:end], candidate.magic) {
			return SignatureMatch
		}
	}

	return SignatureMismatch
}
