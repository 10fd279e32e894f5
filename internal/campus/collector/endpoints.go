// File: internal/campus/collector/endpoints.go
package collector

// Collector API paths, rooted at the institution's portal base. Part of the
// wire protocol, preserved as data.
const (
	collectorBase = "/wec-counselor-collector-apps/stu/collector"

	listPath   = collectorBase + "/queryCollectorProcessingList"
	detailPath = collectorBase + "/detailCollector"
	fieldsPath = collectorBase + "/getFormFields"
	submitPath = collectorBase + "/submitForm"

	// listPageSize is fixed: the processing list is asked for its first six
	// entries, matching the mobile client.
	listPageSize = 6
	// fieldsPageSize is the single bulk page of form entries.
	fieldsPageSize = 100
)

// Device and app identity presented to the submission endpoint. The server
// fingerprints these values; they must match a real client release.
const (
	appVersion       = "9.0.12"
	deviceModel      = "OPPO R11 Plus"
	systemName       = "android"
	systemVersion    = "9.1.0"
	calVersion       = "firstv"
	extensionVersion = "first_v2"
	signVersion      = "1.0.0"
)
