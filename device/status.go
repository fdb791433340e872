package device

// Status codes shared by the backends. The values follow the OpenCL status
// codes so errors read the same whichever runtime produced them.
const (
	StatusSuccess                    = 0
	StatusDeviceNotFound             = -1
	StatusDeviceNotAvailable         = -2
	StatusMemObjectAllocationFailure = -4
	StatusOutOfResources             = -5
	StatusProfilingInfoNotAvailable  = -7
	StatusBuildProgramFailure        = -11
	StatusInvalidValue               = -30
	StatusInvalidDevice              = -33
	StatusInvalidContext             = -34
	StatusInvalidQueueProperties     = -35
	StatusInvalidCommandQueue        = -36
	StatusInvalidMemObject           = -38
	StatusInvalidProgram             = -44
	StatusInvalidProgramExecutable   = -45
	StatusInvalidKernelName          = -46
	StatusInvalidKernel              = -48
	StatusInvalidArgIndex            = -49
	StatusInvalidArgValue            = -50
	StatusInvalidKernelArgs          = -52
	StatusInvalidEvent               = -58
	StatusInvalidOperation           = -59
	StatusInvalidBufferSize          = -61
	StatusInvalidGlobalWorkSize      = -63
)
