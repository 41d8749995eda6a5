package model

// Departments is the fixed triage catalog.
var Departments = []Department{
	{ID: "general", Name: "General Practice", Description: "Routine checkups, vaccinations, fever, loss of appetite, general malaise", Icon: "stethoscope"},
	{ID: "dermatology", Name: "Dermatology", Description: "Itching, hair loss, rashes, ear infections, skin lumps", Icon: "paw"},
	{ID: "gastro", Name: "Gastroenterology", Description: "Vomiting, diarrhea, constipation, abdominal pain", Icon: "activity"},
	{ID: "orthopedics", Name: "Orthopedics", Description: "Limping, joint pain, fractures, mobility problems", Icon: "bone"},
	{ID: "dental", Name: "Dentistry", Description: "Bad breath, tooth loss, gum bleeding, difficulty chewing", Icon: "smile"},
	{ID: "ophthalmology", Name: "Ophthalmology", Description: "Eye discharge, redness, cloudy eyes, squinting", Icon: "eye"},
}

func DepartmentByID(id string) (Department, bool) {
	for _, d := range Departments {
		if d.ID == id {
			return d, true
		}
	}
	return Department{}, false
}

var DefaultSettings = SiteSettings{
	AppName:         "Kangjian Veterinary Clinic",
	WelcomeTitle:    "Caring for your pet's health",
	WelcomeSubtitle: "Starting with smart booking",
	Description:     "Book online around the clock. AI symptom analysis recommends the right service for your pet.",
}

var DefaultDoctors = []Doctor{
	{ID: "doc-001", DepartmentID: "general", Name: "Dr. Lin", Specialty: "Small animal internal medicine", Image: "https://picsum.photos/seed/doc-001/200/200"},
}
