package cv

// Document 表示一份结构化简历。
// 客户端草稿与服务端 Content(JSONB) 共用同一结构。
type Document struct {
	Template       string          `json:"template"`
	PersonalInfo   PersonalInfo    `json:"personalInfo"`
	Summary        string          `json:"summary"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Skills         []Skill         `json:"skills"`
	Languages      []Language      `json:"languages"`
	Certifications []Certification `json:"certifications"`
	Projects       []Project       `json:"projects"`
	References     []Reference     `json:"references"`
	CustomSections []CustomSection `json:"customSections"`
	Settings       Settings        `json:"settings"`
}

// PersonalInfo 是简历头部的联系信息，全部为扁平字符串字段。
type PersonalInfo struct {
	FullName   string `json:"fullName"`
	JobTitle   string `json:"jobTitle"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Country    string `json:"country"`
	PostalCode string `json:"postalCode"`
	LinkedIn   string `json:"linkedIn"`
	Website    string `json:"website"`
	Photo      string `json:"photo"`
}

// Experience 工作经历条目。ID 为客户端生成的毫秒时间戳。
type Experience struct {
	ID          int64  `json:"id"`
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Description string `json:"description"`
}

// Education 教育经历条目。
type Education struct {
	ID          int64  `json:"id"`
	Degree      string `json:"degree"`
	Institution string `json:"institution"`
	Location    string `json:"location"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
	Current     bool   `json:"current"`
	Grade       string `json:"grade"`
	Description string `json:"description"`
}

// Skill 技能条目。
type Skill struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Level string `json:"level"`
}

// Language 语言条目。
type Language struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Proficiency string `json:"proficiency"`
}

// Certification 证书条目。
type Certification struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Issuer       string `json:"issuer"`
	Date         string `json:"date"`
	ExpiryDate   string `json:"expiryDate"`
	CredentialID string `json:"credentialId"`
}

// Project 项目条目。
type Project struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Technologies []string `json:"technologies"`
	Link         string   `json:"link"`
	StartDate    string   `json:"startDate"`
	EndDate      string   `json:"endDate"`
}

// Reference 推荐人条目。
type Reference struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Position     string `json:"position"`
	Company      string `json:"company"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// CustomSection 自定义段落。
type CustomSection struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Settings 控制模板的外观。
type Settings struct {
	PrimaryColor string `json:"primaryColor"`
	FontFamily   string `json:"fontFamily"`
	FontSize     string `json:"fontSize"`
}

// DefaultDocument 返回新建草稿的默认值。
func DefaultDocument() Document {
	return Document{
		Template:       "modern",
		Experience:     []Experience{},
		Education:      []Education{},
		Skills:         []Skill{},
		Languages:      []Language{},
		Certifications: []Certification{},
		Projects:       []Project{},
		References:     []Reference{},
		CustomSections: []CustomSection{},
		Settings: Settings{
			PrimaryColor: "#2563eb",
			FontFamily:   "Inter",
			FontSize:     "medium",
		},
	}
}

// Template 描述可选的简历模板。
type Template struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Preview     string   `json:"preview"`
	Colors      []string `json:"colors"`
}

// Templates 返回内置模板目录。
func Templates() []Template {
	return []Template{
		{ID: "modern", Name: "Modern", Description: "Clean and contemporary design with bold headers", Preview: "/templates/modern.png", Colors: []string{"#2563eb", "#1e40af", "#3b82f6"}},
		{ID: "classic", Name: "Classic", Description: "Traditional professional layout", Preview: "/templates/classic.png", Colors: []string{"#1f2937", "#374151", "#4b5563"}},
		{ID: "creative", Name: "Creative", Description: "Unique design for creative professionals", Preview: "/templates/creative.png", Colors: []string{"#7c3aed", "#8b5cf6", "#a78bfa"}},
		{ID: "minimal", Name: "Minimal", Description: "Simple and elegant minimalist design", Preview: "/templates/minimal.png", Colors: []string{"#171717", "#262626", "#404040"}},
		{ID: "professional", Name: "Professional", Description: "Corporate-style professional template", Preview: "/templates/professional.png", Colors: []string{"#0369a1", "#0284c7", "#0ea5e9"}},
		{ID: "elegant", Name: "Elegant", Description: "Sophisticated design with elegant typography", Preview: "/templates/elegant.png", Colors: []string{"#b91c1c", "#dc2626", "#ef4444"}},
	}
}

// ValidTemplate 判断模板 ID 是否在目录中。
func ValidTemplate(id string) bool {
	for _, t := range Templates() {
		if t.ID == id {
			return true
		}
	}
	return false
}
