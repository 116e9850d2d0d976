package awss3

// Config holds the connection settings of the AWS S3 backend.
type Config struct {
	// Endpoint overrides the AWS endpoint, e.g. for Ceph or localstack. Empty uses AWS.
	Endpoint string `mapstructure:"endpoint" default:""`
	// Region is the AWS region of the buckets.
	Region string `mapstructure:"region" default:"us-east-1"`
	// AccessKey and SecretKey select static credentials. When empty the
	// default AWS credential chain is used.
	AccessKey string `mapstructure:"access_key" default:""`
	SecretKey string `mapstructure:"secret_key" default:""`
	// UsePathStyle addresses buckets as endpoint/bucket instead of bucket.endpoint.
	UsePathStyle bool `mapstructure:"use_path_style" default:"false"`
	// PageSize bounds the keys returned per ListObjectsV2 call.
	PageSize int32 `mapstructure:"page_size" default:"1000"`
}
