// Package http implements the HTTP handlers of the chemvis server. Handlers
// stay thin: they parse and validate the request, call the service layer and
// render the result, leaving business rules to internal/services.
//
// # Routes
//
//	POST /api/datasets                 multipart "file" upload, 201 + summary
//	GET  /api/datasets?limit=N         history, newest first (1 <= N <= 50)
//	GET  /api/datasets/{id}            full summary
//	GET  /api/datasets/{id}/stats      aggregates only
//	GET  /api/datasets/{id}/report     report download (?format=pdf|xlsx|csv)
//
// The paths of the first Django release are kept as aliases:
//
//	POST /api/upload/   GET /api/history/   GET /api/stats/{id}/   GET /api/report/{id}/
//
// # Error Handling
//
// Every failure is passed to errors.ErrorHandler, which renders an RFC 7807
// problem document:
//
//	{
//	    "type": "/errors/dataset/invalid",
//	    "title": "Invalid Dataset",
//	    "status": 400,
//	    "detail": "invalid field \"Pressure\": missing required column",
//	    "instance": "/api/datasets",
//	    "field": "Pressure"
//	}
//
// # Testing
//
// Handlers are tested with httptest against a testify mock of
// DatasetServiceInterface.
package http
