package catalog

import "time"

// GPSSource enumerates where a Location's coordinates came from (spec.md
// §3.1).
type GPSSource string

const (
	GPSSourceUserMapClick   GPSSource = "user_map_click"
	GPSSourcePhotoEXIF      GPSSource = "photo_exif"
	GPSSourceGeocodedAddr   GPSSource = "geocoded_address"
	GPSSourceManualEntry    GPSSource = "manual_entry"
	GPSSourceRefMapPoint    GPSSource = "ref_map_point"
	GPSSourceImported       GPSSource = "imported"
)

// AddressConfidence enumerates geocode confidence tiers (spec.md §3.1).
type AddressConfidence string

const (
	ConfidenceHigh   AddressConfidence = "high"
	ConfidenceMedium AddressConfidence = "medium"
	ConfidenceLow    AddressConfidence = "low"
)

// GPS is a Location's geocoordinate record (spec.md §3.1).
type GPS struct {
	Lat            float64
	Lng            float64
	AccuracyM      *float64
	Source         GPSSource
	VerifiedOnMap  bool
	CapturedAt     *time.Time
	GeocodeTier    string
	GeocodeQuery   string
}

// Address is a Location's postal address record (spec.md §3.1).
type Address struct {
	Street      string
	City        string
	County      string
	State       string
	Zipcode     string
	Confidence  AddressConfidence
	GeocodedAt  *time.Time
}

// Location is the archive's primary domain entity (spec.md §3.1).
type Location struct {
	LocID string
	Loc12 string
	Locnam string
	Akanam string
	HistoricalName string

	Type  string
	Stype string

	GPS     *GPS
	Address *Address

	AddressRaw        string
	AddressNormalized string
	AddressParsedJSON string

	CensusRegion       string
	CensusDivision     string
	StateDirection     string
	CulturalRegion     string
	CulturalRegionUserSet bool

	Documentation string
	Access        string
	Historic      bool
	Favorite      bool
	Project       bool
	DocInterior   bool
	DocExterior   bool
	DocDrone      bool
	DocWebHistory bool
	BuiltYear     *int
	AbandonedYear *int

	HeroImgSHA string

	BagStatus   string
	BagSealedAt *time.Time

	AuthImp string
	LocAdd  time.Time
	LocUp   time.Time
}

// SubLocation is one building within a Location's campus (spec.md §3.1).
type SubLocation struct {
	SubID      string
	Sub12      string
	LocID      string
	Subnam     string
	SSubname   string
	Type       string
	Status     string
	HeroImgSHA string
	IsPrimary  bool
}

// MediaKind distinguishes the three media row variants (spec.md §3.1).
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// Media is the common shape shared across image/video/document rows,
// with kind-specific fields left zero-valued when not applicable (spec.md
// §3.1, §9: "typed sum variants per media kind with a raw_metadata_json
// escape hatch").
type Media struct {
	Hash         string
	Kind         MediaKind
	OriginalName string
	OriginalPath string
	ArchivedPath string
	LocID        string
	SubID        string
	ImportID     string
	Imgadd       time.Time

	Width       int
	Height      int
	DateTaken   *time.Time
	CameraMake  string
	CameraModel string
	GPSLat      *float64
	GPSLng      *float64
	RawEXIFJSON string

	ThumbPathSm     string
	ThumbPathLg     string
	PreviewPath     string
	PreviewQuality  string
	XMPSynced       bool
	Hidden          bool
	HiddenReason    string
	IsLivePhoto     bool
	FileSizeBytes   int64

	DurationS       float64
	Codec           string
	FPS             float64
	PosterExtracted bool
	ProxyPath       string

	PageCount *int
	Author    string
	Title     string
}

// ImportStatus is an Import session's durable lifecycle state (spec.md
// §4.7).
type ImportStatus string

const (
	ImportPending    ImportStatus = "pending"
	ImportScanning   ImportStatus = "scanning"
	ImportHashing    ImportStatus = "hashing"
	ImportCopying    ImportStatus = "copying"
	ImportValidating ImportStatus = "validating"
	ImportFinalizing ImportStatus = "finalizing"
	ImportCompleted  ImportStatus = "completed"
	ImportCancelled  ImportStatus = "cancelled"
	ImportFailed     ImportStatus = "failed"
)

// Import is one import session (spec.md §3.1).
type Import struct {
	ImportID        string
	LocID           string
	StartedAt       time.Time
	CompletedAt     *time.Time
	AuthImp         string
	Status          ImportStatus
	CountImages     int
	CountVideos     int
	CountDocuments  int
	CountDuplicates int
	CountErrors     int
	Notes           string
	CancelRequested bool
}

// PlannedFileState drives per-file resumability (spec.md §4.7).
type PlannedFileState string

const (
	PlannedFilePlanned  PlannedFileState = "planned"
	PlannedFileHashed   PlannedFileState = "hashed"
	PlannedFilePlaced   PlannedFileState = "placed"
	PlannedFileRowed    PlannedFileState = "rowed"
	PlannedFileDuplicate PlannedFileState = "duplicate"
	PlannedFileError    PlannedFileState = "error"
	PlannedFileSkipped  PlannedFileState = "skipped"
)

// PlannedFile is one session-scoped file inventory row (spec.md §4.7 step 1).
type PlannedFile struct {
	ImportID     string
	SourcePath   string
	MediaKind    MediaKind
	SidecarOf    string
	State        PlannedFileState
	SHA256       string
	SizeBytes    int64
	PlacedPath   string
	ErrorMessage string
}

// FixityStatus enumerates a verification outcome (spec.md §3.1).
type FixityStatus string

const (
	FixityValid     FixityStatus = "valid"
	FixityCorrupted FixityStatus = "corrupted"
	FixityMissing   FixityStatus = "missing"
	FixityError     FixityStatus = "error"
)

// FixityRecord is one immutable verification check (spec.md §3.1).
type FixityRecord struct {
	CheckID      string
	MediaSHA     string
	MediaType    MediaKind
	FilePath     string
	CheckedAt    time.Time
	CheckedBy    string
	ExpectedHash string
	ActualHash   string
	Status       FixityStatus
	ActualSize   *int64
	ErrorMessage string
}

// ReferenceMap is one imported KML/KMZ/GPX/GeoJSON/CSV file (spec.md §3.1).
type ReferenceMap struct {
	MapID      string
	SourcePath string
	ImportedAt time.Time
	ImportedBy string
	PointCount int
}

// ReferenceMapPoint is one point parsed from a ReferenceMap (spec.md §3.1).
type ReferenceMapPoint struct {
	PointID         string
	MapID           string
	Name            string
	Description     string
	Lat             float64
	Lng             float64
	State           string
	Category        string
	RawMetadataJSON string
	AkaNames        string
}
