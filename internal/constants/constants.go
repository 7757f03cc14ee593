package constants

// DummyAPIKey is used as a placeholder when connecting to OpenAI-compatible services
// that don't require authentication. Many services expect a token in the request
// header but don't validate it.
const DummyAPIKey = "not-needed"

// OutputPrefix is prepended to the original file name of every produced document.
const OutputPrefix = "translated_"

// MinOutputSize is the smallest output file, in bytes, accepted as a non-corrupt document.
const MinOutputSize = 1000

// MaxUploadSize is the default upload limit of the HTTP front end.
const MaxUploadSize = 16 << 20
