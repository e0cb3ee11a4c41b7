package types

// Table identifiers, in the underscore form the backend reports from GET /table.
const (
	TableStudent           = "student"
	TableFaculty           = "faculty"
	TableCurriculum        = "curriculum"
	TableFacultyCurriculum = "faculty_curriculum"
	TableTeacher           = "teacher"
	TableBook              = "book"
	TableCategory          = "category"
	TableAuthor            = "author"
	TableAuthorBook        = "author_book"
	TableLibrarian         = "librarian"
	TablePublisher         = "publisher"
	TableCountry           = "country"
	TableStudentCard       = "student_card"
	TableTeacherCard       = "teacher_card"
	TableStudentsBorrowing = "students_borrowing"
	TableTeachersBorrowing = "teachers_borrowing"
)

// Book conditions, used for both the starting and the finishing grade of a
// borrowing.
const (
	ConditionExcellent      = "Excellent"
	ConditionGood           = "Good"
	ConditionSatisfactory   = "Satisfactory"
	ConditionUnsatisfactory = "Unsatisfactory"
)

// BookConditions lists the grades in display order.
var BookConditions = []string{
	ConditionExcellent,
	ConditionGood,
	ConditionSatisfactory,
	ConditionUnsatisfactory,
}

// Student and teacher statuses.
const (
	StudentGraduated = "Graduated"
	StudentExpelled  = "Expelled"
	StudentMoved     = "Moved"

	TeacherFired = "Fired"
	TeacherMoved = "Moved"
)

// ValidCondition reports whether c is one of the book conditions.
func ValidCondition(c string) bool {
	for _, v := range BookConditions {
		if v == c {
			return true
		}
	}
	return false
}

func serial() Field { return Field{Name: "id", Type: FieldInt} }

func text(name string) Field { return Field{Name: name, Type: FieldString} }

func integer(name string) Field { return Field{Name: name, Type: FieldInt} }

func day(name string) Field { return Field{Name: name, Type: FieldDate} }

func condition(name string, nullable bool) Field {
	f := Field{Name: name, Type: FieldEnum, Members: BookConditions, Nullable: nullable}
	if !nullable {
		f.Default = ConditionExcellent
	}
	return f
}

// schemas is the closed set of tables the panel knows how to edit.
var schemas = map[string]Schema{
	TableStudent: {Name: TableStudent, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("lastname"), text("surname"), integer("age"),
		integer("faculty_curriculum"), integer("group"), day("start_study_date"),
		{Name: "status", Type: FieldEnum, Nullable: true, Default: StudentGraduated,
			Members: []string{StudentGraduated, StudentExpelled, StudentMoved}},
	}},
	TableFaculty: {Name: TableFaculty, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("letter"),
	}},
	TableCurriculum: {Name: TableCurriculum, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("letter"),
	}},
	TableFacultyCurriculum: {Name: TableFacultyCurriculum, PrimaryKey: "id", Fields: []Field{
		serial(), integer("faculty"), integer("curriculum"),
	}},
	TableTeacher: {Name: TableTeacher, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("lastname"), text("surname"), integer("age"), integer("faculty"),
		{Name: "status", Type: FieldEnum, Nullable: true, Default: TeacherMoved,
			Members: []string{TeacherFired, TeacherMoved}},
	}},
	TableBook: {Name: TableBook, PrimaryKey: "id", Fields: []Field{
		serial(), text("title"), day("release"), integer("publisher"), integer("category"),
		{Name: "student_access", Type: FieldBool},
	}},
	TableCategory: {Name: TableCategory, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"),
	}},
	TableAuthor: {Name: TableAuthor, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("lastname"), text("surname"), text("country"),
	}},
	TableAuthorBook: {Name: TableAuthorBook, PrimaryKey: "id", Fields: []Field{
		serial(), integer("author_id"), integer("book_id"), integer("num"),
	}},
	TableLibrarian: {Name: TableLibrarian, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("lastname"), text("surname"), integer("age"),
	}},
	TablePublisher: {Name: TablePublisher, PrimaryKey: "id", Fields: []Field{
		serial(), text("name"), text("country"),
	}},
	TableCountry: {Name: TableCountry, PrimaryKey: "code", NaturalKey: true, Fields: []Field{
		text("code"), text("name"),
	}},
	TableStudentCard: {Name: TableStudentCard, PrimaryKey: "id", Fields: []Field{
		serial(), integer("student"), day("issue_date"),
	}},
	TableTeacherCard: {Name: TableTeacherCard, PrimaryKey: "id", Fields: []Field{
		serial(), integer("teacher"), day("issue_date"),
	}},
	TableStudentsBorrowing: {Name: TableStudentsBorrowing, PrimaryKey: "id", Fields: []Field{
		serial(), integer("student_card"), integer("librarian"), integer("book"),
		condition("book_status_start", false), condition("book_status_finish", true),
		day("borrow_date"), {Name: "return_date", Type: FieldDate, Nullable: true},
		day("required_return_date"),
	}},
	TableTeachersBorrowing: {Name: TableTeachersBorrowing, PrimaryKey: "id", Fields: []Field{
		serial(), integer("teacher_card"), integer("librarian"), integer("book"),
		condition("book_status_start", false), condition("book_status_finish", true),
		day("borrow_date"), {Name: "return_date", Type: FieldDate, Nullable: true},
	}},
}

// StandardTableNames lists every known table in a stable order.
var StandardTableNames = []string{
	TableStudent,
	TableFaculty,
	TableCurriculum,
	TableFacultyCurriculum,
	TableTeacher,
	TableBook,
	TableCategory,
	TableAuthor,
	TableAuthorBook,
	TableLibrarian,
	TablePublisher,
	TableCountry,
	TableStudentCard,
	TableTeacherCard,
	TableStudentsBorrowing,
	TableTeachersBorrowing,
}

// Lookup returns the schema for a table given in either underscore or
// hyphenated form. Returns ErrTableNotFound for unknown names.
func Lookup(table string) (Schema, error) {
	s, ok := schemas[CanonicalName(table)]
	if !ok {
		return Schema{}, ErrTableNotFound
	}
	return s, nil
}
