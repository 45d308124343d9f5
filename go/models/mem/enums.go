package mem

// page protections
const (
	PROT_NONE  = 0
	PROT_READ  = 1
	PROT_WRITE = 2
	PROT_EXEC  = 4
	PROT_RW    = PROT_READ | PROT_WRITE
	PROT_ALL   = 7
)

// fault kinds carried by MemError
const (
	MEM_WRITE_PROT     = 12
	MEM_READ_PROT      = 13
	MEM_READ_UNMAPPED  = 19
	MEM_WRITE_UNMAPPED = 20
)
