// Package services implements the business logic layer of chemvis.
// It sits between the HTTP handlers and the dataset store, so the upload
// pipeline, report rendering and health checks are testable without HTTP.
//
// # Available Services
//
//	- DatasetService: parses uploads, computes summaries, stores them in the
//	  bounded history, publishes history events and renders reports
//	- HealthService: liveness, readiness and version information
//
// # Error Handling
//
// Services return the domain errors unchanged (wrapped with %w where
// context is added) so the HTTP error handler can map them:
//
//	- *domain.ValidationError for malformed uploads or parameters
//	- domain.ErrEmptyDataset for uploads without data rows
//	- *domain.NotFoundError for unknown or evicted ids
//
// # Testing
//
// Services are tested against the in-memory store with testify mocks for
// the event publisher and report renderer:
//
//	publisher := new(MockEventPublisher)
//	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)
//	svc := NewDatasetService(storage.NewMemoryStore(5), report.NewRenderer("test"), publisher, nil, nil, logger)
package services
