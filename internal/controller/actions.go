package controller

// Action is a user intent. The set is closed: only this package defines actions.
type Action interface {
	action()
}

type (
	AddFolder struct {
		Name string
	}
	DeleteFolder struct {
		Name string
	}
	AddImage struct {
		Folder   string
		Locator  string
		MimeType string
	}
	DeleteImage struct {
		Folder  string
		Locator string
	}
	// DeleteAllClicked asks to clear the catalog. It clears right away unless
	// some folder still holds pending images, in which case confirmation is requested.
	DeleteAllClicked struct{}
	// DeleteAll clears the catalog without asking
	DeleteAll struct{}
	// DismissDeleteAll withdraws a pending delete-all confirmation
	DismissDeleteAll struct{}
	UploadFolder     struct {
		Name string
	}
	UploadAll    struct{}
	CancelUpload struct {
		Name string
	}
	SignOut      struct{}
	DismissLogin struct{}
	// ScanBarcode decodes the barcode in Image and adds a folder named after it
	ScanBarcode struct {
		Image    []byte
		MimeType string
	}
	SetParentFolder struct {
		Name string
	}
)

func (AddFolder) action()        {}
func (DeleteFolder) action()     {}
func (AddImage) action()         {}
func (DeleteImage) action()      {}
func (DeleteAllClicked) action() {}
func (DeleteAll) action()        {}
func (DismissDeleteAll) action() {}
func (UploadFolder) action()     {}
func (UploadAll) action()        {}
func (CancelUpload) action()     {}
func (SignOut) action()          {}
func (DismissLogin) action()     {}
func (ScanBarcode) action()      {}
func (SetParentFolder) action()  {}
