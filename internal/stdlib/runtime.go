package stdlib

// ExtCName is the file name the generated C includes.
const ExtCName = "ext.c"

// ExtC returns the C runtime. It is included after every type definition
// and prototype, so it may use the generated til_Str, til_Array and error
// structs directly.
func ExtC() string { return extC }

const extC = `/* TIL core runtime. */
#include <stdio.h>
#include <stdlib.h>
#include <string.h>

static int til_heap_enabled = 0;
static til_I64 til_heap_live = 0;

static void* til_alloc(size_t n) {
    void* p = malloc(n == 0 ? 1 : n);
    if (p != NULL && til_heap_enabled) {
        til_heap_live++;
    }
    return p;
}

static void til_release(void* p) {
    if (p != NULL && til_heap_enabled) {
        til_heap_live--;
    }
    free(p);
}

void til_HeapState_enable(void) { til_heap_enabled = 1; }
void til_HeapState_disable(void) { til_heap_enabled = 0; }
void til_HeapState_add(const til_I64 til_ptr) { (void)til_ptr; til_heap_live++; }
void til_HeapState_remove(const til_I64 til_ptr) { (void)til_ptr; til_heap_live--; }
void til_HeapState_report(void) {
    if (til_heap_live != 0) {
        fprintf(stderr, "heap: %lld live allocations\n", til_heap_live);
    }
}

til_Str til_Str_from_literal(const char* lit) {
    til_Str s;
    s.til_c_string = (til_I64)lit;
    s.til_cap = (til_I64)strlen(lit);
    return s;
}

static const char* til_cstr(const til_Str s) { return (const char*)s.til_c_string; }

til_Bool til_Str_eq(const til_Str til_a, const til_Str til_b) {
    return (til_Bool){til_a.til_cap == til_b.til_cap && strcmp(til_cstr(til_a), til_cstr(til_b)) == 0};
}

til_I64 til_Str_len(const til_Str til_self) { return til_self.til_cap; }

til_Str til_Str_clone(const til_Str til_self) {
    char* buf = (char*)til_alloc((size_t)til_self.til_cap + 1);
    memcpy(buf, til_cstr(til_self), (size_t)til_self.til_cap + 1);
    til_Str s;
    s.til_c_string = (til_I64)buf;
    s.til_cap = til_self.til_cap;
    return s;
}

til_Str til_concat(const til_Str til_a, const til_Str til_b) {
    size_t n = (size_t)(til_a.til_cap + til_b.til_cap);
    char* buf = (char*)til_alloc(n + 1);
    memcpy(buf, til_cstr(til_a), (size_t)til_a.til_cap);
    memcpy(buf + til_a.til_cap, til_cstr(til_b), (size_t)til_b.til_cap);
    buf[n] = 0;
    til_Str s;
    s.til_c_string = (til_I64)buf;
    s.til_cap = (til_I64)n;
    return s;
}

til_Str til_Str_concat(const til_Str til_a, const til_Str til_b) { return til_concat(til_a, til_b); }

til_Str til_to_str(const til_I64 til_i) {
    char* buf = (char*)til_alloc(32);
    int n = snprintf(buf, 32, "%lld", til_i);
    til_Str s;
    s.til_c_string = (til_I64)buf;
    s.til_cap = (til_I64)n;
    return s;
}

til_I64 til_add(const til_I64 til_a, const til_I64 til_b) { return til_a + til_b; }
til_I64 til_sub(const til_I64 til_a, const til_I64 til_b) { return til_a - til_b; }
til_I64 til_mul(const til_I64 til_a, const til_I64 til_b) { return til_a * til_b; }
til_I64 til_mod(const til_I64 til_a, const til_I64 til_b) { return til_b == 0 ? 0 : til_a % til_b; }

til_Bool til_eq(const til_I64 til_a, const til_I64 til_b) { return (til_Bool){til_a == til_b}; }
til_Bool til_lt(const til_I64 til_a, const til_I64 til_b) { return (til_Bool){til_a < til_b}; }
til_Bool til_gt(const til_I64 til_a, const til_I64 til_b) { return (til_Bool){til_a > til_b}; }
til_Bool til_lteq(const til_I64 til_a, const til_I64 til_b) { return (til_Bool){til_a <= til_b}; }
til_Bool til_gteq(const til_I64 til_a, const til_I64 til_b) { return (til_Bool){til_a >= til_b}; }

til_Bool til_not(const til_Bool til_b) { return (til_Bool){!til_b.data}; }
til_Bool til_and(const til_Bool til_a, const til_Bool til_b) { return (til_Bool){til_a.data && til_b.data}; }
til_Bool til_or(const til_Bool til_a, const til_Bool til_b) { return (til_Bool){til_a.data || til_b.data}; }

int til_Array_new(til_Array* _ret, til_BadAlloc* _err1, const til_Type til_T, const til_I64 til_capacity) {
    til_I64 size = til_size_of(til_T);
    void* p = til_alloc((size_t)(size * til_capacity));
    if (p == NULL) {
        _err1->til_msg = til_Str_from_literal("Array.new: out of memory");
        return 1;
    }
    _ret->til_type_name = til_Str_from_literal(til_T);
    _ret->til_type_size = size;
    _ret->til_ptr = (til_I64)p;
    _ret->til__len = til_capacity;
    return 0;
}

int til_Array_set(til_IndexOutOfBoundsError* _err1, til_Array* til_self, const til_I64 til_index, const til_Dynamic til_value) {
    if (til_index < 0 || til_index >= til_self->til__len) {
        _err1->til_msg = til_Str_from_literal("Array.set: index out of bounds");
        return 1;
    }
    memcpy((char*)til_self->til_ptr + til_index * til_self->til_type_size, til_value, (size_t)til_self->til_type_size);
    return 0;
}

int til_Array_get(til_IndexOutOfBoundsError* _err1, const til_Array til_self, const til_I64 til_index, til_Dynamic til_dest) {
    if (til_index < 0 || til_index >= til_self.til__len) {
        _err1->til_msg = til_Str_from_literal("Array.get: index out of bounds");
        return 1;
    }
    memcpy(til_dest, (char*)til_self.til_ptr + til_index * til_self.til_type_size, (size_t)til_self.til_type_size);
    return 0;
}

void til_Array_delete(til_Array* til_self) {
    til_release((void*)til_self->til_ptr);
    til_self->til_ptr = 0;
    til_self->til__len = 0;
}

til_I64 til_Array_len(const til_Array til_self) { return til_self.til__len; }

void til_println(til_Array* til_args) {
    for (til_I64 i = 0; i < til_args->til__len; i++) {
        til_Str s = ((til_Str*)til_args->til_ptr)[i];
        fputs(til_cstr(s), stdout);
    }
    fputc('\n', stdout);
}

void til_panic(const til_Str til_msg) {
    fprintf(stderr, "panic: %s\n", til_cstr(til_msg));
    exit(1);
}

void til_exit(const til_I64 til_code) { exit((int)til_code); }
`
