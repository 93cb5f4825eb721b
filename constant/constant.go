package constant

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusFailed     JobStatus = "FAILED"
	JobStatusCompleted  JobStatus = "COMPLETED"
)

type JobType string

const (
	JobTypeThumbnail  JobType = "THUMBNAIL"
	JobTypeConversion JobType = "CONVERSION"
)

type Visibility string

const (
	VisibilityPublic   Visibility = "PUBLIC"
	VisibilityUnlisted Visibility = "UNLISTED"
	VisibilityPrivate  Visibility = "PRIVATE"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}

// QualityOriginal is the passthrough rendition carrying the unmodified source.
const QualityOriginal = "original"
