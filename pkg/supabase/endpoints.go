package supabase

// Service path suffixes appended to the project URL.
const (
	AuthPath     = "/auth/v1"
	RestPath     = "/rest/v1"
	RealtimePath = "/realtime/v1"
	StoragePath  = "/storage/v1"
)

// Endpoints are the per-service base URLs of a project.
type Endpoints struct {
	AuthURL     string
	RestURL     string
	RealtimeURL string
	StorageURL  string
}

// DeriveEndpoints appends the service suffixes to baseURL. The URL is not
// validated or normalized; a malformed URL surfaces on first network use.
func DeriveEndpoints(baseURL string) Endpoints {
	return Endpoints{
		AuthURL:     baseURL + AuthPath,
		RestURL:     baseURL + RestPath,
		RealtimeURL: baseURL + RealtimePath,
		StorageURL:  baseURL + StoragePath,
	}
}
