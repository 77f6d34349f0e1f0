package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrUnauthorized      ErrCode = "UNAUTHORIZED"
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidID         ErrCode = "INVALID_ID"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrQuestionNotInExam ErrCode = "QUESTION_NOT_IN_EXAM"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound     ErrCode = "NOT_FOUND"
	ErrInvalidState ErrCode = "INVALID_STATE"

	// ─── Exam session ──────────────────────────────────────────────────
	ErrInvalidPassword  ErrCode = "INVALID_PASSWORD"
	ErrAttemptsExceeded ErrCode = "ATTEMPTS_EXCEEDED"
	ErrExamUnavailable  ErrCode = "EXAM_UNAVAILABLE"
	ErrExamExpired      ErrCode = "EXAM_EXPIRED"
	ErrSessionNotActive ErrCode = "SESSION_NOT_ACTIVE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrUnauthorized:
		return "Sesi ujian ini bukan milik Anda."
	case ErrPermissionDenied:
		return "Izin ditolak."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Format data tidak valid."
	case ErrQuestionNotInExam:
		return "Soal tidak termasuk dalam ujian ini."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Data tidak ditemukan."
	case ErrInvalidState:
		return "Status ujian tidak memungkinkan tindakan ini."

	// ─── Exam session ──────────────────────────────────────────────────
	case ErrInvalidPassword:
		return "Kata sandi ujian salah."
	case ErrAttemptsExceeded:
		return "Batas percobaan ujian telah habis."
	case ErrExamUnavailable:
		return "Ujian belum tersedia atau sudah ditutup."
	case ErrExamExpired:
		return "Waktu ujian telah habis."
	case ErrSessionNotActive:
		return "Sesi ujian tidak aktif."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan pada server."

	default:
		return "Terjadi kesalahan."
	}
}
