package di

// DryRun indicates external commands should be printed, not executed.
type DryRun bool

// Option is a function that configures the dependency injection container.
type Option func(*options)

// WithDryRun makes the container's command runner print commands instead of
// executing them.
func WithDryRun(dryRun bool) Option {
	return func(opts *options) {
		opts.dryRun = dryRun
	}
}

// WithProviders adds constructor functions to the dependency injection
// container. Each provider should be a constructor function that returns one
// or more values. Providers can declare dependencies as function parameters,
// which will be automatically resolved by the container.
//
// Example:
//
//	WithProviders(
//	    func() *Database { return &Database{} },
//	    func(db *Database) *Service { return &Service{DB: db} },
//	)
func WithProviders(providers ...any) Option {
	return func(opts *options) {
		opts.providers = append(opts.providers, providers...)
	}
}

type options struct {
	dryRun    bool
	providers []any
}
