package compute

// SoftwareBackendBuilderOption is a functional option used to configure the software backend during construction.
type SoftwareBackendBuilderOption func(*softwareBackend)

// WithWorkers sets how many goroutines execute workgroups. Values below 1 are treated as 1,
// which runs every dispatch inline on the calling goroutine.
//
// Parameters:
//   - workers: the worker count
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that sets the worker count
func WithWorkers(workers int) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.workers = max(1, workers)
	}
}

// WithSoftwareValidation compiles every kernel's WGSL with naga at load time even though the
// software backend never runs it, so CPU-only runs still catch broken shaders.
//
// Parameters:
//   - validate: true to validate kernels on load
//
// Returns:
//   - SoftwareBackendBuilderOption: a function that toggles kernel validation
func WithSoftwareValidation(validate bool) SoftwareBackendBuilderOption {
	return func(b *softwareBackend) {
		b.validate = validate
	}
}
