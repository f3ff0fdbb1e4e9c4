package domain

// List of urgency categories.
const (
	UrgencyStandard  Urgency = "standard"
	UrgencyExpress   Urgency = "express"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyScheduled Urgency = "scheduled"
)

// List of package size categories.
const (
	SizeSmall      PackageSize = "small"
	SizeMedium     PackageSize = "medium"
	SizeLarge      PackageSize = "large"
	SizeExtraLarge PackageSize = "extra-large"
)

type (
	// Urgency represents how fast a delivery should happen.
	Urgency string
	// PackageSize represents the size category of a package.
	PackageSize string
)

var allowedUrgencies = [...]Urgency{
	UrgencyStandard, UrgencyExpress, UrgencyUrgent, UrgencyScheduled,
}

var allowedPackageSizes = [...]PackageSize{
	SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge,
}

// Valid checks if the Urgency is valid.
func (u Urgency) Valid() bool {
	for _, v := range allowedUrgencies {
		if u == v {
			return true
		}
	}
	return false
}

// Valid checks if the PackageSize is valid.
func (s PackageSize) Valid() bool {
	for _, v := range allowedPackageSizes {
		if s == v {
			return true
		}
	}
	return false
}
