package mocks

//go:generate mockery --name Engine --srcpkg github.com/aevon-lab/reprocessor/internal/httpapi --output ./httpapi --outpkg httpapimocks --with-expecter
