package defs

const (
	EPERM        Err_t = 1
	ENOENT       Err_t = 2
	ESRCH        Err_t = 3
	EINTR        Err_t = 4
	EIO          Err_t = 5
	EBADF        Err_t = 9
	ECHILD       Err_t = 10
	ENOMEM       Err_t = 12
	EFAULT       Err_t = 14
	EBUSY        Err_t = 16
	EEXIST       Err_t = 17
	ENODEV       Err_t = 19
	ENOTDIR      Err_t = 20
	EISDIR       Err_t = 21
	EINVAL       Err_t = 22
	EMFILE       Err_t = 24
	EFBIG        Err_t = 27
	ENOSPC       Err_t = 28
	EPIPE        Err_t = 32
	ENAMETOOLONG Err_t = 36
	ENOSYS       Err_t = 38
	ENOTEMPTY    Err_t = 39
)
