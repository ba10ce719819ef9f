package schema

const (
	Profile       = "profile"
	Projects      = "projects"
	Books         = "books"
	Videos        = "videos"
	Courses       = "courses"
	SiteSettings  = "site_settings"
	Verses        = "verses"
	VerseSettings = "verse_settings"
)

const (
	shortText = "max=200"
	longText  = "max=20000"
	optURL    = "omitempty,url"
	order     = "min=0"
)

var registry = map[string]*Collection{
	Profile: {
		Name:   Profile,
		Public: true,
		Fields: map[string]Field{
			"name":         {Kind: KindString, Required: true, Rule: "required,max=120"},
			"title":        {Kind: KindString, Rule: shortText},
			"bio":          {Kind: KindString, Rule: longText},
			"avatar_url":   {Kind: KindString, Rule: optURL},
			"email":        {Kind: KindString, Rule: "omitempty,email"},
			"location":     {Kind: KindString, Rule: shortText},
			"resume_url":   {Kind: KindString, Rule: optURL},
			"github_url":   {Kind: KindString, Rule: optURL},
			"linkedin_url": {Kind: KindString, Rule: optURL},
			"twitter_url":  {Kind: KindString, Rule: optURL},
			"youtube_url":  {Kind: KindString, Rule: optURL},
			"social_links": {Kind: KindObject},
		},
	},
	Projects: {
		Name:   Projects,
		Public: true,
		Fields: map[string]Field{
			"title":            {Kind: KindString, Required: true, Rule: "required,max=200"},
			"description":      {Kind: KindString, Rule: longText},
			"long_description": {Kind: KindString, Rule: longText},
			"image_url":        {Kind: KindString, Rule: optURL},
			"tags":             {Kind: KindStringList, Rule: "max=30,dive,max=50"},
			"technologies":     {Kind: KindStringList, Rule: "max=30,dive,max=50"},
			"live_url":         {Kind: KindString, Rule: optURL},
			"github_url":       {Kind: KindString, Rule: optURL},
			"featured":         {Kind: KindBool},
			"status":           {Kind: KindString, Rule: "omitempty,oneof=draft published archived"},
			"display_order":    {Kind: KindNumber, Rule: order},
		},
	},
	Books: {
		Name:   Books,
		Public: true,
		Fields: map[string]Field{
			"title":         {Kind: KindString, Required: true, Rule: "required,max=200"},
			"author":        {Kind: KindString, Required: true, Rule: "required,max=200"},
			"cover_url":     {Kind: KindString, Rule: optURL},
			"description":   {Kind: KindString, Rule: longText},
			"review":        {Kind: KindString, Rule: longText},
			"rating":        {Kind: KindNumber, Rule: "min=0,max=5"},
			"status":        {Kind: KindString, Rule: "omitempty,oneof=reading read want_to_read"},
			"purchase_url":  {Kind: KindString, Rule: optURL},
			"featured":      {Kind: KindBool},
			"display_order": {Kind: KindNumber, Rule: order},
		},
	},
	Videos: {
		Name:   Videos,
		Public: true,
		Fields: map[string]Field{
			"title":         {Kind: KindString, Required: true, Rule: "required,max=200"},
			"video_url":     {Kind: KindString, Required: true, Rule: "required,url"},
			"thumbnail_url": {Kind: KindString, Rule: optURL},
			"description":   {Kind: KindString, Rule: longText},
			"platform":      {Kind: KindString, Rule: "max=50"},
			"duration":      {Kind: KindString, Rule: "max=20"},
			"published_at":  {Kind: KindString, Rule: "max=40"},
			"featured":      {Kind: KindBool},
			"display_order": {Kind: KindNumber, Rule: order},
		},
	},
	Courses: {
		Name:   Courses,
		Public: true,
		Fields: map[string]Field{
			"title":           {Kind: KindString, Required: true, Rule: "required,max=200"},
			"platform":        {Kind: KindString, Rule: "max=100"},
			"url":             {Kind: KindString, Rule: optURL},
			"description":     {Kind: KindString, Rule: longText},
			"image_url":       {Kind: KindString, Rule: optURL},
			"certificate_url": {Kind: KindString, Rule: optURL},
			"completed_at":    {Kind: KindString, Rule: "max=40"},
			"status":          {Kind: KindString, Rule: "omitempty,oneof=planned in_progress completed"},
			"featured":        {Kind: KindBool},
			"display_order":   {Kind: KindNumber, Rule: order},
		},
	},
	SiteSettings: {
		Name:   SiteSettings,
		Public: true,
		Fields: map[string]Field{
			"key":         {Kind: KindString, Required: true, Rule: "required,max=100"},
			"value":       {Kind: KindAny},
			"description": {Kind: KindString, Rule: shortText},
		},
	},
	Verses: {
		Name:   Verses,
		Public: true,
		Fields: map[string]Field{
			"reference":   {Kind: KindString, Required: true, Rule: "required,max=100"},
			"text":        {Kind: KindString, Required: true, Rule: "required,max=2000"},
			"translation": {Kind: KindString, Rule: "max=20"},
			"active":      {Kind: KindBool},
		},
	},
	VerseSettings: {
		Name: VerseSettings,
		Fields: map[string]Field{
			"mode":           {Kind: KindString, Rule: "omitempty,oneof=daily random fixed"},
			"fixed_verse_id": {Kind: KindString, Rule: "max=64"},
			"enabled":        {Kind: KindBool},
		},
	},
}
